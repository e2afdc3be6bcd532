package app

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upstream-sh/upstream/internal/engine"
	"github.com/upstream-sh/upstream/internal/output"
	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
)

var (
	installFlagName     string
	installFlagProvider string
	installFlagKind     string
	installFlagChannel  string
	installFlagTag      string
	installFlagMatch    string
	installFlagExclude  string
)

var installCmd = &cobra.Command{
	Use:   "install <repo-or-url>...",
	Short: "Install packages from their release sources",
	Long: `Install one or more packages. The argument is an owner/repo slug for
the API providers (github, gitlab, gitea) or a URL for the direct and
scrape providers. The package name defaults to the repository name or
the URL's last path segment.

Asset selection is automatic: the best match for this machine's OS and
architecture wins. Use --match and --exclude to steer it; both patterns
are remembered and reused on upgrades.

Examples:
  # Latest stable release from GitHub
  upstream install sharkdp/fd

  # A specific release
  upstream install --tag v8.7.0 sharkdp/fd

  # Prefer musl builds
  upstream install --match musl BurntSushi/ripgrep

  # A binary behind a plain URL
  upstream install --provider direct https://example.com/dl/tool-linux-amd64

  # Everything linked from a downloads page
  upstream install --provider scrape https://example.com/downloads/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installFlagName, "name", "", "package name (default: derived from the ref)")
	installCmd.Flags().StringVar(&installFlagProvider, "provider", "github", "provider: github, gitlab, gitea, direct, scrape")
	installCmd.Flags().StringVar(&installFlagKind, "kind", "auto", "asset kind: auto, binary, appimage, archive, compressed, winexe")
	installCmd.Flags().StringVar(&installFlagChannel, "channel", "stable", "release channel: stable, nightly")
	installCmd.Flags().StringVar(&installFlagTag, "tag", "", "install a specific release tag instead of the latest")
	installCmd.Flags().StringVar(&installFlagMatch, "match", "", "substring an asset name must contain")
	installCmd.Flags().StringVar(&installFlagExclude, "exclude", "", "substring that disqualifies an asset")

	RootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installFlagName != "" && len(args) > 1 {
		return fmt.Errorf("--name only makes sense with a single package")
	}

	specs := make([]engine.InstallSpec, 0, len(args))
	for _, ref := range args {
		spec, err := buildSpec(ref)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var results []*engine.Result
	err = e.withLock("install", func() error {
		for _, spec := range specs {
			res := e.engine.Install(cmd.Context(), spec)
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

func buildSpec(ref string) (engine.InstallSpec, error) {
	var spec engine.InstallSpec

	kind, ok := provider.ParseProviderKind(installFlagProvider)
	if !ok {
		return spec, fmt.Errorf("unknown provider %q", installFlagProvider)
	}
	fileKind, ok := platform.ParseKind(installFlagKind)
	if !ok {
		return spec, fmt.Errorf("unknown kind %q", installFlagKind)
	}
	channel, ok := provider.ParseChannel(installFlagChannel)
	if !ok {
		return spec, fmt.Errorf("unknown channel %q", installFlagChannel)
	}

	name := installFlagName
	if name == "" {
		name = deriveName(ref)
	}
	if name == "" {
		return spec, fmt.Errorf("cannot derive a package name from %q, use --name", ref)
	}

	return engine.InstallSpec{
		Name:           name,
		Ref:            ref,
		Provider:       kind,
		Kind:           fileKind,
		Channel:        channel,
		Tag:            installFlagTag,
		MatchPattern:   installFlagMatch,
		ExcludePattern: installFlagExclude,
	}, nil
}

// deriveName extracts a package name from an owner/repo slug or a URL.
func deriveName(ref string) string {
	ref = strings.TrimSuffix(ref, "/")
	if i := strings.Index(ref, "://"); i >= 0 {
		ref = ref[i+3:]
	}
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	base := path.Base(ref)
	// Strip common artifact extensions from direct URLs.
	for _, suffix := range []string{".tar.gz", ".tgz", ".zip", ".gz", ".AppImage", ".appimage", ".exe"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if base == "." || base == "/" {
		return ""
	}
	return strings.ToLower(base)
}
