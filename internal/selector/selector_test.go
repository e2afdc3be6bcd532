package selector

import (
	"errors"
	"testing"

	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
)

func linuxAMD64(kind platform.Kind) Target {
	return Target{
		OS:          platform.OSLinux,
		Arch:        platform.ArchAMD64,
		Kind:        kind,
		PackageName: "tool",
	}
}

func release(names ...string) *provider.Release {
	rel := &provider.Release{Tag: "v1.0.0"}
	for _, n := range names {
		rel.Assets = append(rel.Assets, provider.Asset{
			Name:        n,
			DownloadURL: "https://example.com/" + n,
			Size:        5_000_000,
		})
	}
	return rel
}

func TestSelectPrefersExactPlatform(t *testing.T) {
	rel := release(
		"tool-1.0.0-linux-amd64.tar.gz",
		"tool-1.0.0-linux-arm64.tar.gz",
		"tool-1.0.0-darwin-amd64.tar.gz",
		"tool-1.0.0-windows-amd64.zip",
	)

	asset, err := Select(rel, linuxAMD64(platform.KindArchive))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-1.0.0-linux-amd64.tar.gz" {
		t.Errorf("Select() = %q, want linux-amd64 tarball", asset.Name)
	}
}

func TestSelectDeterministic(t *testing.T) {
	rel := release(
		"tool-linux-amd64.tar.gz",
		"tool-linux-x86_64.tar.gz",
		"tool-linux.tar.gz",
	)
	target := linuxAMD64(platform.KindArchive)

	first, err := Select(rel, target)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Select(rel, target)
		if err != nil {
			t.Fatalf("Select() error on run %d: %v", i, err)
		}
		if again.Name != first.Name {
			t.Fatalf("Select() not deterministic: %q then %q", first.Name, again.Name)
		}
	}
}

func TestSelectTieBreakShortestThenLexicographic(t *testing.T) {
	// Both names carry identical tokens; the shorter one must win.
	rel := release(
		"tool-extra-linux-amd64.tar.gz",
		"tool-linux-amd64.tar.gz",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindArchive))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64.tar.gz" {
		t.Errorf("tie break picked %q, want shortest name", asset.Name)
	}

	// Same length: lexicographic.
	rel = release(
		"tool-b-linux-amd64.tar.gz",
		"tool-a-linux-amd64.tar.gz",
	)
	asset, err = Select(rel, linuxAMD64(platform.KindArchive))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-a-linux-amd64.tar.gz" {
		t.Errorf("tie break picked %q, want lexicographically first", asset.Name)
	}
}

func TestMatchPatternDominatesPlatformTokens(t *testing.T) {
	rel := release(
		"tool-linux-amd64.tar.gz",
		"tool-musl-build.tar.gz",
	)
	target := linuxAMD64(platform.KindArchive)
	target.MatchPattern = "musl"

	asset, err := Select(rel, target)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-musl-build.tar.gz" {
		t.Errorf("Select() = %q, want match_pattern to dominate os/arch tokens", asset.Name)
	}
}

func TestExcludePatternDropsBeforeScoring(t *testing.T) {
	rel := release(
		"tool-linux-amd64-musl.tar.gz",
		"tool-linux-amd64.tar.gz",
	)
	target := linuxAMD64(platform.KindArchive)
	target.ExcludePattern = "musl"

	asset, err := Select(rel, target)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64.tar.gz" {
		t.Errorf("Select() = %q, excluded asset must never win", asset.Name)
	}
}

func TestChecksumFilesDeprioritized(t *testing.T) {
	rel := release(
		"tool-linux-amd64",
		"tool-linux-amd64.sha256",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindBinary))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64" {
		t.Errorf("Select() = %q, checksum file must not win for kind=binary", asset.Name)
	}
}

func TestChecksumKindSelectsChecksumAsset(t *testing.T) {
	rel := release(
		"tool-linux-amd64.tar.gz",
		"tool-linux-amd64.tar.gz.sha256",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindChecksum))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64.tar.gz.sha256" {
		t.Errorf("Select() = %q, want the checksum asset", asset.Name)
	}
}

func TestAutoKindPrefersAppImageOnLinux(t *testing.T) {
	rel := release(
		"tool-linux-amd64.tar.gz",
		"tool-linux-amd64.AppImage",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindAuto))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64.AppImage" {
		t.Errorf("Select(auto) = %q, want the AppImage", asset.Name)
	}
}

func TestUnsupportedArchiveFormatsNeverWin(t *testing.T) {
	// The xz tarball would outscore the zip on format alone, but nothing
	// downstream can open it, so the zip must win.
	rel := release(
		"tool-linux-amd64.tar.xz",
		"tool-linux-amd64.zip",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindArchive))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64.zip" {
		t.Errorf("Select() = %q, want the openable archive", asset.Name)
	}

	// A release shipping only unopenable archives has no candidates.
	rel = release("tool-linux-amd64.tar.xz", "tool-linux-amd64.7z")
	_, err = Select(rel, linuxAMD64(platform.KindArchive))
	var noMatch *NoMatchingAssetError
	if !errors.As(err, &noMatch) {
		t.Fatalf("error = %v, want NoMatchingAssetError", err)
	}
}

func TestAutoKindSkipsUnsupportedArchives(t *testing.T) {
	rel := release(
		"tool-linux-amd64.tar.xz",
		"tool-linux-amd64",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindAuto))
	if err != nil {
		t.Fatalf("Select(auto) error: %v", err)
	}
	if asset.Name != "tool-linux-amd64" {
		t.Errorf("Select(auto) = %q, want the bare binary over an unopenable archive", asset.Name)
	}
}

func TestNoMatchingAsset(t *testing.T) {
	rel := release("tool-windows-amd64.zip")

	_, err := Select(rel, linuxAMD64(platform.KindArchive))
	var noMatch *NoMatchingAssetError
	if !errors.As(err, &noMatch) {
		t.Fatalf("error = %v, want NoMatchingAssetError", err)
	}
}

func TestKindFilterSkippedForAuto(t *testing.T) {
	rel := release("tool-linux-amd64.tar.gz")

	if _, err := Select(rel, linuxAMD64(platform.KindAuto)); err != nil {
		t.Errorf("Select(auto) error: %v", err)
	}
	if _, err := Select(rel, linuxAMD64(platform.KindAppImage)); err == nil {
		t.Error("Select(appimage) should fail when release only ships archives")
	}
}

func TestDebugBuildsLoseToRegularBuilds(t *testing.T) {
	rel := release(
		"tool-linux-amd64-debug.tar.gz",
		"tool-linux-amd64.tar.gz",
	)
	asset, err := Select(rel, linuxAMD64(platform.KindArchive))
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if asset.Name != "tool-linux-amd64.tar.gz" {
		t.Errorf("Select() = %q, debug build should lose", asset.Name)
	}
}

func TestRankOrdering(t *testing.T) {
	rel := release(
		"other-linux-amd64.tar.gz",
		"tool-linux-amd64.tar.gz",
	)
	candidates := Rank(rel, linuxAMD64(platform.KindArchive))
	if len(candidates) != 2 {
		t.Fatalf("Rank() returned %d candidates, want 2", len(candidates))
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Errorf("Rank() not ordered by score: %d then %d", candidates[0].Score, candidates[1].Score)
	}
	if candidates[0].Asset.Name != "tool-linux-amd64.tar.gz" {
		t.Errorf("Rank()[0] = %q, package-named asset should rank first", candidates[0].Asset.Name)
	}
}
