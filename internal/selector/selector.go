// Package selector picks the single best asset of a release for a target
// platform. Selection is a pure function of the release and the target
// spec: identical inputs always produce the identical choice.
package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/upstream-sh/upstream/internal/extract"
	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
)

// Scoring weights. match_pattern dominates OS/arch tokens on purpose: a
// user who writes a pattern is overriding the platform heuristics.
const (
	weightMatchPattern   = 100
	weightArchExact      = 80
	weightOSToken        = 40
	weightArchCompatible = 30
	weightNameContains   = -40
	weightChecksumLike   = -60
	weightDebugBuild     = -20
	weightSizeSuspect    = -20
	weightStaticBuild    = 5
)

// Target describes what the selector is choosing for.
type Target struct {
	OS   platform.OS
	Arch platform.Arch
	Kind platform.Kind

	// PackageName biases selection toward assets that mention the package.
	PackageName string

	// MatchPattern is a user-supplied substring that dominates scoring.
	// ExcludePattern drops assets outright before scoring.
	MatchPattern   string
	ExcludePattern string
}

// NoMatchingAssetError is returned when filtering leaves no candidates.
type NoMatchingAssetError struct {
	Release string
	Target  Target
}

func (e *NoMatchingAssetError) Error() string {
	return fmt.Sprintf("no matching asset in release %q for %s/%s (kind %s)",
		e.Release, e.Target.OS, e.Target.Arch, e.Target.Kind)
}

// Candidate pairs an asset with its score, for diagnostics and tests.
type Candidate struct {
	Asset provider.Asset
	Score int
}

// Select returns the single best asset of rel for the target, or a
// NoMatchingAssetError when nothing survives filtering.
func Select(rel *provider.Release, t Target) (provider.Asset, error) {
	candidates := Rank(rel, t)
	if len(candidates) == 0 {
		return provider.Asset{}, &NoMatchingAssetError{Release: rel.Tag, Target: t}
	}
	return candidates[0].Asset, nil
}

// Rank filters and scores every asset of rel, best first. Ties break by
// shortest filename, then lexicographic order, so ranking is total.
func Rank(rel *provider.Release, t Target) []Candidate {
	kind := t.Kind
	if kind == platform.KindAuto || kind == "" {
		kind = resolveAutoKind(rel, t.OS)
	}

	var candidates []Candidate
	for _, asset := range rel.Assets {
		if !survivesFilter(asset, t, kind) {
			continue
		}
		candidates = append(candidates, Candidate{
			Asset: asset,
			Score: score(asset, t, kind),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Asset.Name) != len(b.Asset.Name) {
			return len(a.Asset.Name) < len(b.Asset.Name)
		}
		return a.Asset.Name < b.Asset.Name
	})

	return candidates
}

// resolveAutoKind picks the concrete kind for kind=auto from what the
// release actually ships, in preference order for the target OS.
func resolveAutoKind(rel *provider.Release, os platform.OS) platform.Kind {
	var priority []platform.Kind
	if os == platform.OSWindows {
		priority = []platform.Kind{platform.KindWinExe, platform.KindArchive, platform.KindCompressed}
	} else {
		priority = []platform.Kind{platform.KindAppImage, platform.KindArchive, platform.KindCompressed, platform.KindBinary}
	}

	for _, kind := range priority {
		for _, asset := range rel.Assets {
			if asset.Kind() == kind && unpackable(asset.Name, kind) {
				return kind
			}
		}
	}
	return platform.KindBinary
}

// unpackable reports whether an asset of the given kind can actually be
// opened after download. Selecting a .tar.xz over a .zip only to fail at
// staging helps nobody.
func unpackable(name string, kind platform.Kind) bool {
	switch kind {
	case platform.KindArchive, platform.KindCompressed:
		return extract.CanExtract(name)
	}
	return true
}

func survivesFilter(asset provider.Asset, t Target, kind platform.Kind) bool {
	name := strings.ToLower(asset.Name)

	if t.ExcludePattern != "" && strings.Contains(name, strings.ToLower(t.ExcludePattern)) {
		return false
	}

	assetKind := asset.Kind()
	if assetKind != kind {
		return false
	}
	if !unpackable(asset.Name, assetKind) {
		return false
	}

	// An asset that clearly targets another OS is out; unknown OS stays in.
	if assetOS := platform.ParseOS(asset.Name); assetOS != platform.OSUnknown && t.OS != "" && assetOS != t.OS {
		return false
	}

	// Incompatible architectures are out; unknown arch stays in.
	if assetArch := platform.ParseArch(asset.Name); assetArch != platform.ArchUnknown && t.Arch != "" {
		if assetArch != t.Arch && !archCompatible(t.Arch, assetArch) {
			return false
		}
	}

	return true
}

// archCompatible reports whether a host arch can run an asset arch
// (amd64 runs 386, arm64 runs arm).
func archCompatible(host, asset platform.Arch) bool {
	switch host {
	case platform.ArchAMD64:
		return asset == platform.Arch386
	case platform.ArchARM64:
		return asset == platform.ArchARM
	}
	return false
}

func score(asset provider.Asset, t Target, kind platform.Kind) int {
	name := strings.ToLower(asset.Name)
	total := 0

	if t.MatchPattern != "" && strings.Contains(name, strings.ToLower(t.MatchPattern)) {
		total += weightMatchPattern
	}

	if t.OS != "" && platform.ParseOS(asset.Name) == t.OS {
		total += weightOSToken
	}

	switch assetArch := platform.ParseArch(asset.Name); {
	case t.Arch != "" && assetArch == t.Arch:
		total += weightArchExact
	case t.Arch != "" && archCompatible(t.Arch, assetArch):
		total += weightArchCompatible
	}

	total += formatPreference(name, kind)

	if kind != platform.KindChecksum && looksLikeChecksum(name) {
		total += weightChecksumLike
	}

	if t.PackageName != "" && !strings.Contains(name, strings.ToLower(t.PackageName)) {
		total += weightNameContains
	}

	if strings.Contains(name, "static") {
		total += weightStaticBuild
	}
	if strings.Contains(name, "debug") || strings.Contains(name, "symbols") {
		total += weightDebugBuild
	}

	// A size is not always reported; only penalize when it is and looks off.
	if asset.Size > 0 && (asset.Size < 100_000 || asset.Size > 500_000_000) {
		total += weightSizeSuspect
	}

	return total
}

// formatPreference nudges toward better-supported formats within a kind.
func formatPreference(name string, kind platform.Kind) int {
	switch kind {
	case platform.KindArchive:
		switch {
		case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
			return 10
		case strings.HasSuffix(name, ".zip"):
			return 5
		}
	case platform.KindCompressed:
		if strings.HasSuffix(name, ".gz") {
			return 5
		}
	case platform.KindBinary:
		if !strings.Contains(pathExtless(name), ".") {
			return 10
		}
	}
	return 0
}

// pathExtless returns the last path element of name for extension checks.
func pathExtless(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func looksLikeChecksum(name string) bool {
	return platform.ParseFileKind(name) == platform.KindChecksum
}
