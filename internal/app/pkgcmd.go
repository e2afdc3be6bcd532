package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/fsutil"
	"github.com/upstream-sh/upstream/internal/store"
)

var packageCmd = &cobra.Command{
	Use:     "package",
	Aliases: []string{"pkg"},
	Short:   "Inspect and tweak installed packages",
	Long: `Inspect and tweak per-package metadata.

Examples:
  upstream package pin bat
  upstream package unpin bat
  upstream package metadata bat
  upstream package get-key bat channel
  upstream package set-key bat match_pattern musl
  upstream package rename bat batcat`,
}

var pinCmd = &cobra.Command{
	Use:   "pin <package>...",
	Short: "Exclude packages from upgrades",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPinned(args, true) },
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <package>...",
	Short: "Include packages in upgrades again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPinned(args, false) },
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <package>",
	Short: "Show everything recorded about a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		rec, err := e.store.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%-20s %s\n", "name", rec.Name)
		fmt.Printf("%-20s %s\n", "repo", rec.Repo)
		fmt.Printf("%-20s %s\n", "provider", rec.Provider)
		fmt.Printf("%-20s %s\n", "kind", rec.Kind)
		fmt.Printf("%-20s %s\n", "channel", rec.Channel)
		fmt.Printf("%-20s %t\n", "pinned", rec.Pinned)
		fmt.Printf("%-20s %s\n", "version", rec.Version)
		fmt.Printf("%-20s %s\n", "install_path", rec.InstallPath)
		fmt.Printf("%-20s %s\n", "exec_path", rec.ExecPath)
		fmt.Printf("%-20s %s\n", "symlink_path", rec.SymlinkPath)
		if rec.DesktopEntryPath != "" {
			fmt.Printf("%-20s %s\n", "desktop_entry_path", rec.DesktopEntryPath)
		}
		if rec.MatchPattern != "" {
			fmt.Printf("%-20s %s\n", "match_pattern", rec.MatchPattern)
		}
		if rec.ExcludePattern != "" {
			fmt.Printf("%-20s %s\n", "exclude_pattern", rec.ExcludePattern)
		}
		fmt.Printf("%-20s %s\n", "checksum", rec.Checksum)
		return nil
	},
}

var getKeyCmd = &cobra.Command{
	Use:   "get-key <package> <key>",
	Short: "Print one metadata field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		value, err := e.store.GetKey(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <package> <key> <value>",
	Short: "Set one metadata field",
	Long: fmt.Sprintf(`Set one metadata field. Values are validated and coerced to the
field's type. Settable keys: %v.`, store.Keys()),
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return e.withLock("set-key", func() error {
			return e.store.SetKey(args[0], args[1], args[2])
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <package> <new-name>",
	Short: "Rename a package and its symlink",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldName, newName := args[0], args[1]

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return e.withLock("rename", func() error {
			rec, err := e.store.Get(oldName)
			if err != nil {
				return err
			}
			if err := e.store.Rename(oldName, newName); err != nil {
				return err
			}

			// Re-point the command name; the artifact directory keeps its
			// path so the record stays truthful.
			if rec.SymlinkPath != "" {
				newLink := filepath.Join(e.paths.SymlinksDir, newName)
				if err := fsutil.EnsureSymlink(rec.ExecPath, newLink); err != nil {
					return err
				}
				if err := fsutil.RemoveSymlink(rec.SymlinkPath); err != nil {
					logger.Warn("failed to remove old symlink", "path", rec.SymlinkPath, "err", err)
				}
				renamed, err := e.store.Get(newName)
				if err != nil {
					return err
				}
				renamed.SymlinkPath = newLink
				return e.store.Upsert(renamed)
			}
			return nil
		})
	},
}

func init() {
	packageCmd.AddCommand(pinCmd)
	packageCmd.AddCommand(unpinCmd)
	packageCmd.AddCommand(metadataCmd)
	packageCmd.AddCommand(getKeyCmd)
	packageCmd.AddCommand(setKeyCmd)
	packageCmd.AddCommand(renameCmd)
	RootCmd.AddCommand(packageCmd)
}

// pinOperation is the lock label a contending process sees.
func pinOperation(pinned bool) string {
	if pinned {
		return "pin"
	}
	return "unpin"
}

func setPinned(names []string, pinned bool) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	return e.withLock(pinOperation(pinned), func() error {
		for _, name := range names {
			if err := e.store.SetPinned(name, pinned); err != nil {
				return err
			}
			if pinned {
				fmt.Printf("Pinned %s\n", name)
			} else {
				fmt.Printf("Unpinned %s\n", name)
			}
		}
		return nil
	})
}
