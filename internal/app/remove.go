package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/engine"
	"github.com/upstream-sh/upstream/internal/output"
)

var removeFlagPurge bool

var removeCmd = &cobra.Command{
	Use:     "remove <package>...",
	Aliases: []string{"uninstall", "rm"},
	Short:   "Uninstall packages",
	Long: `Remove packages: their artifacts, symlinks, desktop entries, and
records. With --purge, the packages' cache, config, and data
directories under your home are removed too.

Examples:
  upstream remove bat
  upstream remove --purge inkscape`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeFlagPurge, "purge", false, "also remove the package's cache, config, and data directories")
	RootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var results []*engine.Result
	err = e.withLock("remove", func() error {
		for _, name := range args {
			res := e.engine.Remove(cmd.Context(), name, engine.RemoveOptions{Purge: removeFlagPurge})
			results = append(results, res)
			fmt.Println(output.RenderResult(res))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return batchError(results)
}
