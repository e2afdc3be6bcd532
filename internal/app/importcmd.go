package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/engine"
	"github.com/upstream-sh/upstream/internal/manifest"
	"github.com/upstream-sh/upstream/internal/output"
)

var importFlagSkipFailed bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Install packages from an exported manifest or snapshot",
	Long: `Install every package listed in a JSON manifest produced by
'upstream export'. Releases are resolved in parallel, then installs run
one at a time. Pins recorded in the manifest are restored.

A .tar.gz argument is treated as a full snapshot and unpacked into the
managed tree directly, without contacting any provider.

Examples:
  upstream import packages.json
  upstream import --skip-failed packages.json
  upstream import backup.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importFlagSkipFailed, "skip-failed", false, "continue past packages that fail to resolve or install")
	RootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	src := args[0]

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if manifest.IsSnapshot(src) {
		return e.withLock("import", func() error {
			if err := e.paths.EnsureLayout(); err != nil {
				return err
			}
			if err := manifest.ImportSnapshot(src, e.paths.DataDir); err != nil {
				return err
			}
			fmt.Printf("Restored snapshot from %s\n", src)
			return nil
		})
	}

	m, err := manifest.Load(src)
	if err != nil {
		return err
	}

	var results []*engine.Result
	err = e.withLock("import", func() error {
		var runErr error
		results, runErr = e.engine.Import(cmd.Context(), m, engine.ImportOptions{
			SkipFailed: importFlagSkipFailed,
		})
		return runErr
	})
	for _, res := range results {
		fmt.Println(output.RenderResult(res))
	}
	if err != nil {
		return err
	}
	return batchError(results)
}
