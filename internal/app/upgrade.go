package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/engine"
	"github.com/upstream-sh/upstream/internal/output"
)

var (
	upgradeFlagForce bool
	upgradeFlagCheck bool
)

var upgradeCmd = &cobra.Command{
	Use:     "upgrade [package...]",
	Aliases: []string{"update"},
	Short:   "Upgrade installed packages to their latest releases",
	Long: `Upgrade the named packages, or every installed package when none are
named. Pinned packages are skipped unless --force is given.

With --check, nothing is downloaded or changed: each package reports
whether an update is available. Packages from providers without version
metadata (direct, scrape) are checked with conditional HTTP requests
and report as unversioned.

Examples:
  upstream upgrade
  upstream upgrade bat fd
  upstream upgrade --check
  upstream upgrade --force pinned-tool`,
	RunE: runUpgrade,
}

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeFlagForce, "force", false, "upgrade pinned packages too")
	upgradeCmd.Flags().BoolVar(&upgradeFlagCheck, "check", false, "report available updates without installing")
	RootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	opts := engine.UpgradeOptions{Force: upgradeFlagForce, CheckOnly: upgradeFlagCheck}

	run := func() ([]*engine.Result, error) {
		if len(args) == 0 {
			return e.engine.UpgradeAll(cmd.Context(), opts)
		}
		results := make([]*engine.Result, 0, len(args))
		for _, name := range args {
			results = append(results, e.engine.Upgrade(cmd.Context(), name, opts))
		}
		return results, nil
	}

	var results []*engine.Result
	if upgradeFlagCheck {
		// Check mode mutates nothing, so it runs without the lock.
		if results, err = run(); err != nil {
			return err
		}
		for _, res := range results {
			fmt.Println(output.RenderCheckResult(res))
		}
		return batchError(results)
	}

	err = e.withLock("upgrade", func() error {
		var runErr error
		results, runErr = run()
		return runErr
	})
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Println(output.RenderResult(res))
	}
	return batchError(results)
}
