package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/config"
	"github.com/upstream-sh/upstream/internal/paths"
	"github.com/upstream-sh/upstream/internal/store"
)

var initFlagClean bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the managed directory tree and package database",
	Long: `Create ~/.upstream with its subdirectories, the package database, and
a default configuration file. Running init on an existing installation
is harmless.

With --clean, the managed tree and database are wiped first. Installed
packages are gone afterwards; the configuration file is kept.

Examples:
  upstream init
  upstream init --clean`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlagClean, "clean", false, "wipe the managed tree before initializing")
	RootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	p, err := paths.Default()
	if err != nil {
		return err
	}

	if initFlagClean {
		fmt.Printf("Removing %s\n", p.DataDir)
		if err := os.RemoveAll(p.DataDir); err != nil {
			return fmt.Errorf("failed to remove managed tree: %w", err)
		}
	}

	if err := p.EnsureLayout(); err != nil {
		return err
	}

	st, err := store.New(p.DBFile)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.CreateSchema(); err != nil {
		return err
	}

	if _, err := os.Stat(p.ConfigFile); os.IsNotExist(err) {
		if err := config.Default().Save(p.ConfigFile); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", p.ConfigFile)
	}

	fmt.Printf("Initialized %s\n", p.DataDir)
	fmt.Printf("Add %s to your PATH to use installed packages.\n", p.SymlinksDir)
	return nil
}
