package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/manifest"
)

var exportFlagFull bool

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the package list or a full snapshot",
	Long: `Export the installed package list as a JSON manifest, suitable for
'upstream import' on another machine.

With --full, export a tar.gz snapshot of the entire managed tree
instead: binaries, symlinks, and metadata. A snapshot restores bit for
bit but is only portable between machines with the same platform.

Examples:
  upstream export packages.json
  upstream export --full backup.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportFlagFull, "full", false, "export a tar.gz snapshot of the managed tree")
	RootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	dest := args[0]

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if exportFlagFull {
		if !manifest.IsSnapshot(dest) {
			return fmt.Errorf("snapshot exports should end in .tar.gz")
		}
		if err := manifest.ExportSnapshot(e.paths.DataDir, dest); err != nil {
			return err
		}
		fmt.Printf("Exported snapshot to %s\n", dest)
		return nil
	}

	records, err := e.store.List()
	if err != nil {
		return err
	}
	m := manifest.FromRecords(records, time.Now())
	if err := m.Write(dest); err != nil {
		return err
	}
	fmt.Printf("Exported %d package(s) to %s\n", len(m.Packages), dest)
	return nil
}
