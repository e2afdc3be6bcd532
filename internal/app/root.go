package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})

	// RootCmd is the root command for upstream.
	RootCmd = &cobra.Command{
		Use:   "upstream",
		Short: "Rootless package manager for release binaries",
		Long: `upstream installs and updates prebuilt binaries, AppImages, and release
archives straight from where their authors publish them: GitHub, GitLab,
and Gitea releases, direct download URLs, or plain listing pages.

Everything lives under ~/.upstream and no step needs root. Installed
executables are exposed through stable symlinks in ~/.upstream/symlinks;
add that directory to your PATH once and upgrades never break it.

Quick Start:
  1. upstream init
  2. upstream install sharkdp/fd
  3. upstream upgrade

Examples:
  # Install the latest release of a GitHub project
  upstream install sharkdp/bat

  # Install from GitLab, following the nightly channel
  upstream install --provider gitlab --channel nightly inkscape/inkscape

  # Pin a package so upgrades skip it
  upstream package pin bat

  # See what an upgrade would do
  upstream upgrade --check

  # Check the managed tree for problems
  upstream doctor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logger.SetLevel(log.DebugLevel)
			} else {
				logger.SetLevel(log.WarnLevel)
			}
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so in-flight downloads stop and deferred cleanup, the lock
// release included, still runs.
func Execute(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}
