package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/upstream-sh/upstream/internal/fsutil"
)

// RemoveOptions controls removal behavior.
type RemoveOptions struct {
	// Purge also removes the package's cache, config, and data
	// directories under the user's home.
	Purge bool
}

// Remove uninstalls one package: artifacts, symlink, desktop entry, and
// finally the record. The record goes last so a partial removal is
// still visible to doctor.
func (e *Engine) Remove(ctx context.Context, name string, opts RemoveOptions) *Result {
	res := &Result{Name: name, State: StateIdle}

	rec, err := e.store.Get(name)
	if err != nil {
		return fail(res, StateIdle, err)
	}
	res.OldVersion = rec.Version

	res.State = StateSwapping
	if rec.InstallPath != "" && e.paths.Contains(rec.InstallPath) {
		if err := os.RemoveAll(rec.InstallPath); err != nil {
			return fail(res, StateSwapping, fmt.Errorf("failed to remove %s: %w", rec.InstallPath, err))
		}
	}
	if rec.SymlinkPath != "" {
		if err := fsutil.RemoveSymlink(rec.SymlinkPath); err != nil {
			e.log.Warn("failed to remove symlink", "package", name, "err", err)
		}
	}
	if rec.DesktopEntryPath != "" {
		if err := os.Remove(rec.DesktopEntryPath); err != nil && !os.IsNotExist(err) {
			e.log.Warn("failed to remove desktop entry", "package", name, "err", err)
		}
	}

	if opts.Purge {
		e.purgeUserData(name)
	}

	res.State = StateFinalizing
	if err := e.store.Delete(name); err != nil {
		return fail(res, StateFinalizing, err)
	}

	res.State = StateDone
	e.log.Info("removed", "package", name, "purge", opts.Purge)
	return res
}

// purgeUserData removes the conventional per-application directories.
// Failures are logged, not fatal: the uninstall itself already happened.
func (e *Engine) purgeUserData(name string) {
	home := filepath.Dir(e.paths.DataDir)
	for _, dir := range []string{
		filepath.Join(home, ".cache", name),
		filepath.Join(home, ".config", name),
		filepath.Join(home, ".local", "share", name),
	} {
		if err := os.RemoveAll(dir); err != nil {
			e.log.Warn("failed to purge directory", "dir", dir, "err", err)
		}
	}
}
