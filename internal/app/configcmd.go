package app

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/config"
	"github.com/upstream-sh/upstream/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write configuration",
	Long: `Read and write the configuration file by dotted key path.

Examples:
  upstream config list
  upstream config get network.retries
  upstream config set provider.github.token ghp_xxx
  upstream config reset network.timeout_seconds
  upstream config edit`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every key and its current value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		all := cfg.All()
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %s\n", k, all[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		value, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, p, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		return cfg.Save(p.ConfigFile)
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Restore one key to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, p, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Reset(args[0]); err != nil {
			return err
		}
		return cfg.Save(p.ConfigFile)
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the configuration file in $EDITOR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := paths.Default()
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		if _, err := os.Stat(p.ConfigFile); os.IsNotExist(err) {
			if err := config.Default().Save(p.ConfigFile); err != nil {
				return err
			}
		}
		edit := exec.Command(editor, p.ConfigFile)
		edit.Stdin = os.Stdin
		edit.Stdout = os.Stdout
		edit.Stderr = os.Stderr
		if err := edit.Run(); err != nil {
			return fmt.Errorf("editor failed: %w", err)
		}
		// Reject a broken file right away instead of at the next command.
		if _, err := config.Load(p.ConfigFile); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configEditCmd)
	RootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, *paths.Paths, error) {
	p, err := paths.Default()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(p.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, p, nil
}
