package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed packages",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		records, err := e.store.List()
		if err != nil {
			return err
		}
		fmt.Print(output.RenderPackageTable(records))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(listCmd)
}
