package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/upstream-sh/upstream/internal/extract"
	"github.com/upstream-sh/upstream/internal/fsutil"
	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/selector"
	"github.com/upstream-sh/upstream/internal/store"
	"github.com/upstream-sh/upstream/internal/verify"
)

// InstallSpec describes one requested installation.
type InstallSpec struct {
	Name     string
	Ref      string
	Provider provider.Kind
	Kind     platform.Kind
	Channel  provider.Channel

	// Tag pins resolution to a specific release instead of the latest.
	Tag string

	MatchPattern   string
	ExcludePattern string

	// pinAfterInstall re-pins a package restored from a manifest.
	pinAfterInstall bool
}

// plan is a resolved installation: the release, the chosen asset, and
// the source to download from. Planning performs no disk mutation.
type plan struct {
	spec  InstallSpec
	src   provider.Source
	rel   *provider.Release
	asset provider.Asset
}

// Install resolves, downloads, verifies, and installs one package. A
// package that is already installed is skipped; use Upgrade to move it.
func (e *Engine) Install(ctx context.Context, spec InstallSpec) *Result {
	res := &Result{Name: spec.Name, State: StateIdle, Versioned: true}

	if _, err := e.store.Get(spec.Name); err == nil {
		res.Skipped = true
		res.Reason = "already installed"
		return res
	} else if !errors.Is(err, store.ErrNotFound) {
		return fail(res, StateIdle, err)
	}

	p, err := e.plan(ctx, spec)
	if err != nil {
		return fail(res, StateResolving, err)
	}
	res.Versioned = p.rel.Versioned
	res.NewVersion = p.rel.Tag

	return e.apply(ctx, p, nil, res)
}

// plan resolves the release and selects the asset without touching disk.
func (e *Engine) plan(ctx context.Context, spec InstallSpec) (*plan, error) {
	src, err := e.sources.Source(spec.Provider)
	if err != nil {
		return nil, err
	}

	channel := spec.Channel
	if channel == "" {
		channel = provider.ChannelStable
	}

	var rel *provider.Release
	if spec.Tag != "" {
		rel, err = src.FetchRelease(ctx, spec.Ref, spec.Tag)
	} else {
		rel, err = provider.Latest(ctx, src, spec.Ref, channel)
	}
	if err != nil {
		return nil, err
	}

	asset, err := selector.Select(rel, e.target(spec))
	if err != nil {
		return nil, err
	}

	e.log.Debug("resolved release", "package", spec.Name, "tag", rel.Tag, "asset", asset.Name)
	return &plan{spec: spec, src: src, rel: rel, asset: asset}, nil
}

func (e *Engine) target(spec InstallSpec) selector.Target {
	osKind, arch := platform.Host()
	return selector.Target{
		OS:             osKind,
		Arch:           arch,
		Kind:           spec.Kind,
		PackageName:    spec.Name,
		MatchPattern:   spec.MatchPattern,
		ExcludePattern: spec.ExcludePattern,
	}
}

// apply runs the staged pipeline for a resolved plan. existing is the
// current record during an upgrade, nil for a fresh install.
func (e *Engine) apply(ctx context.Context, p *plan, existing *store.Record, res *Result) *Result {
	slot := filepath.Join(e.paths.StagingDir, e.newID())
	if err := os.MkdirAll(slot, 0o755); err != nil {
		return fail(res, StateStaging, fmt.Errorf("failed to create staging slot: %w", err))
	}
	defer os.RemoveAll(slot)

	// Fetching.
	res.State = StateFetching
	archivePath := filepath.Join(slot, p.asset.Name)
	if err := p.src.Download(ctx, p.asset, archivePath); err != nil {
		return fail(res, StateFetching, err)
	}

	// Verifying.
	res.State = StateVerifying
	checksum, err := e.verifyDownload(ctx, p, slot, archivePath)
	if err != nil {
		return fail(res, StateVerifying, err)
	}

	// Staging: build the payload tree exactly as it will be installed.
	res.State = StateStaging
	payload, execRel, err := e.stage(p, slot, archivePath)
	if err != nil {
		return fail(res, StateStaging, err)
	}

	installDir := e.installDir(p)
	execPath := filepath.Join(installDir, execRel)
	symlink := filepath.Join(e.paths.SymlinksDir, p.spec.Name)

	// Swapping: move the old install aside, then the payload in.
	res.State = StateSwapping
	backup := filepath.Join(slot, "backup")
	hadOld := false
	if _, err := os.Lstat(installDir); err == nil {
		hadOld = true
		if err := fsutil.Move(installDir, backup); err != nil {
			return fail(res, StateSwapping, err)
		}
	}

	linkCreated := false
	desktopPath := ""
	rollback := func(cause error) *Result {
		os.RemoveAll(installDir)
		if hadOld {
			if err := fsutil.Move(backup, installDir); err != nil {
				e.log.Error("rollback failed, previous install lost", "package", p.spec.Name, "err", err)
				return fail(res, StateFailed, fmt.Errorf("rollback failed after %v: %w", cause, err))
			}
		}
		if existing != nil {
			// Point the command name back at the previous install, even
			// when it lives in a different artifact tree.
			if existing.SymlinkPath != "" {
				if err := fsutil.EnsureSymlink(existing.ExecPath, existing.SymlinkPath); err != nil {
					e.log.Warn("failed to restore symlink during rollback", "package", p.spec.Name, "err", err)
				}
			}
		} else {
			// A fresh install has nothing to restore; whatever this
			// attempt created must go.
			if linkCreated {
				os.Remove(symlink)
			}
			if desktopPath != "" {
				os.Remove(desktopPath)
			}
		}
		res.Err = cause
		res.State = StateRolledBack
		return res
	}

	if err := e.swapHook("swap"); err != nil {
		return rollback(err)
	}
	if err := fsutil.Move(payload, installDir); err != nil {
		return rollback(err)
	}

	// Finalizing: symlink, desktop entry, then the record. The record is
	// written last so the store never describes an install that is not
	// fully on disk.
	res.State = StateFinalizing
	if err := e.swapHook("finalize"); err != nil {
		return rollback(err)
	}
	if err := fsutil.EnsureSymlink(execPath, symlink); err != nil {
		return rollback(err)
	}
	linkCreated = true

	if p.asset.Kind() == platform.KindAppImage && e.cfg.Install.CreateDesktopEntries {
		desktopPath, err = e.writeDesktopEntry(p.spec.Name, symlink)
		if err != nil {
			e.log.Warn("failed to write desktop entry", "package", p.spec.Name, "err", err)
			desktopPath = ""
		}
	}

	rec := e.buildRecord(p, existing, installDir, execPath, symlink, desktopPath, checksum)
	if err := e.swapHook("record"); err != nil {
		return rollback(err)
	}
	if err := e.store.Upsert(rec); err != nil {
		return rollback(err)
	}

	if hadOld {
		os.RemoveAll(backup)
	}
	// A release that switched delivery format (binary to archive, say)
	// lands in a different tree; the superseded directory goes with the
	// old record.
	if existing != nil && existing.InstallPath != "" &&
		existing.InstallPath != installDir && e.paths.Contains(existing.InstallPath) {
		os.RemoveAll(existing.InstallPath)
	}
	res.State = StateDone
	e.log.Info("installed", "package", p.spec.Name, "version", p.rel.Tag)
	return res
}

func (e *Engine) buildRecord(p *plan, existing *store.Record, installDir, execPath, symlink, desktopPath, checksum string) *store.Record {
	now := e.now().UTC()
	rec := &store.Record{
		Name:             p.spec.Name,
		Repo:             p.spec.Ref,
		Provider:         p.spec.Provider,
		Kind:             p.spec.Kind,
		Channel:          p.spec.Channel,
		Version:          p.rel.Tag,
		InstallPath:      installDir,
		ExecPath:         execPath,
		Checksum:         checksum,
		SymlinkPath:      symlink,
		DesktopEntryPath: desktopPath,
		MatchPattern:     p.spec.MatchPattern,
		ExcludePattern:   p.spec.ExcludePattern,
		LastCheckedAt:    now,
		LastUpdatedAt:    now,
	}
	if rec.Channel == "" {
		rec.Channel = provider.ChannelStable
	}
	if rec.Kind == "" {
		rec.Kind = platform.KindAuto
	}
	if existing != nil {
		rec.Pinned = existing.Pinned
		rec.ETag = existing.ETag
	}
	return rec
}

// installDir routes artifacts by their downloaded kind: AppImages,
// extracted archives, and bare binaries each get their own tree.
func (e *Engine) installDir(p *plan) string {
	var base string
	switch p.asset.Kind() {
	case platform.KindAppImage:
		base = e.paths.AppImagesDir
	case platform.KindArchive, platform.KindCompressed:
		base = e.paths.ArchivesDir
	default:
		base = e.paths.BinariesDir
	}
	return filepath.Join(base, p.spec.Name)
}

// stage prepares the payload directory inside the slot and returns it
// together with the executable's path relative to the payload root.
func (e *Engine) stage(p *plan, slot, archivePath string) (payload string, execRel string, err error) {
	payload = filepath.Join(slot, "payload")

	switch p.asset.Kind() {
	case platform.KindArchive, platform.KindCompressed:
		root, err := e.extractor.Extract(archivePath, filepath.Join(slot, "extracted"))
		if err != nil {
			return "", "", err
		}
		if err := fsutil.Move(root, payload); err != nil {
			return "", "", err
		}
		execAbs, err := fsutil.FindExecutable(payload, p.spec.Name)
		if err != nil {
			// Archives often ship binaries without the executable bit.
			execAbs, err = e.findAndMark(payload, p.spec.Name)
			if err != nil {
				return "", "", err
			}
		}
		rel, err := filepath.Rel(payload, execAbs)
		if err != nil {
			return "", "", err
		}
		return payload, rel, nil

	case platform.KindAppImage:
		name := p.spec.Name + ".AppImage"
		if err := os.MkdirAll(payload, 0o755); err != nil {
			return "", "", err
		}
		dest := filepath.Join(payload, name)
		if err := fsutil.Move(archivePath, dest); err != nil {
			return "", "", err
		}
		if err := fsutil.MakeExecutable(dest); err != nil {
			return "", "", err
		}
		return payload, name, nil

	default:
		// Bare binary: install under the package name regardless of how
		// the release names the file.
		if err := os.MkdirAll(payload, 0o755); err != nil {
			return "", "", err
		}
		dest := filepath.Join(payload, p.spec.Name)
		if extract.CanExtract(p.asset.Name) {
			root, err := e.extractor.Extract(archivePath, filepath.Join(slot, "extracted"))
			if err != nil {
				return "", "", err
			}
			inner, err := e.findAndMark(root, p.spec.Name)
			if err != nil {
				return "", "", err
			}
			if err := fsutil.Move(inner, dest); err != nil {
				return "", "", err
			}
		} else if err := fsutil.Move(archivePath, dest); err != nil {
			return "", "", err
		}
		if err := fsutil.MakeExecutable(dest); err != nil {
			return "", "", err
		}
		return payload, p.spec.Name, nil
	}
}

// findAndMark locates the most plausible binary by name when nothing in
// the tree carries an executable bit, and marks it.
func (e *Engine) findAndMark(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !d.Type().IsRegular() {
			return err
		}
		base := strings.ToLower(filepath.Base(path))
		if base == strings.ToLower(name) && found == "" {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no executable named %s found in archive", name)
	}
	if err := fsutil.MakeExecutable(found); err != nil {
		return "", err
	}
	return found, nil
}

// verifyDownload checks the downloaded file against the release's
// checksum asset when one exists, and against a minisign signature when
// the provider has a public key configured. It returns the hex digest
// of the download.
func (e *Engine) verifyDownload(ctx context.Context, p *plan, slot, archivePath string) (string, error) {
	actual, err := verify.SHA256File(archivePath)
	if err != nil {
		return "", err
	}

	checksumAsset, ok := findChecksumAsset(p.rel, p.asset.Name)
	if !ok {
		if e.cfg.Install.RequireChecksum {
			return "", fmt.Errorf("no checksum asset in release %s and install.require_checksum is set", p.rel.Tag)
		}
		e.log.Debug("no checksum asset in release", "package", p.spec.Name)
	} else {
		sumPath := filepath.Join(slot, checksumAsset.Name)
		if err := p.src.Download(ctx, checksumAsset, sumPath); err != nil {
			return "", fmt.Errorf("failed to download checksum file: %w", err)
		}
		data, err := os.ReadFile(sumPath)
		if err != nil {
			return "", err
		}
		expected, err := verify.ExtractChecksum(data, p.asset.Name)
		if err != nil {
			if e.cfg.Install.RequireChecksum {
				return "", err
			}
			e.log.Warn("checksum file did not cover the asset", "package", p.spec.Name, "err", err)
		} else if err := verify.VerifyFile(archivePath, expected); err != nil {
			return "", err
		}
	}

	if key := e.cfg.Provider[string(p.spec.Provider)].PublicKey; key != "" {
		if sigAsset, ok := findAsset(p.rel, p.asset.Name+".minisig"); ok {
			sigPath := filepath.Join(slot, sigAsset.Name)
			if err := p.src.Download(ctx, sigAsset, sigPath); err != nil {
				return "", fmt.Errorf("failed to download signature: %w", err)
			}
			if err := verify.VerifyMinisign(archivePath, sigPath, key); err != nil {
				return "", err
			}
		}
	}

	return actual, nil
}

func findAsset(rel *provider.Release, name string) (provider.Asset, bool) {
	for _, a := range rel.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return provider.Asset{}, false
}

// findChecksumAsset prefers a per-asset checksum file, then a release
// wide SHA256SUMS style file.
func findChecksumAsset(rel *provider.Release, assetName string) (provider.Asset, bool) {
	for _, suffix := range []string{".sha256", ".sha256sum"} {
		if a, ok := findAsset(rel, assetName+suffix); ok {
			return a, true
		}
	}
	for _, a := range rel.Assets {
		if a.Kind() == platform.KindChecksum {
			return a, true
		}
	}
	return provider.Asset{}, false
}

func fail(res *Result, at State, err error) *Result {
	res.State = StateFailed
	res.FailedAt = at
	res.Err = err
	return res
}
