// Package doctor checks the consistency of the managed tree against the
// package store and can repair the damage it knows how to fix.
package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/upstream-sh/upstream/internal/config"
	"github.com/upstream-sh/upstream/internal/fsutil"
	"github.com/upstream-sh/upstream/internal/lockfile"
	"github.com/upstream-sh/upstream/internal/paths"
	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/store"
	"github.com/upstream-sh/upstream/internal/verify"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one detected inconsistency.
type Finding struct {
	Package  string
	Severity Severity
	Check    string
	Detail   string

	// Path is the filesystem location the finding is about, when there
	// is one. Repair acts on it.
	Path string

	// Repairable marks findings Repair knows how to fix.
	Repairable bool
}

func (f Finding) String() string {
	if f.Package == "" {
		return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Check, f.Detail)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", f.Severity, f.Package, f.Check, f.Detail)
}

// Options controls which checks run.
type Options struct {
	// VerifyChecksums re-hashes single-file installs against the digest
	// recorded at install time. Off by default since it reads every
	// artifact.
	VerifyChecksums bool
}

// Doctor runs consistency checks over one layout and store.
type Doctor struct {
	store *store.Store
	paths *paths.Paths
	log   *log.Logger
}

// New builds a doctor.
func New(st *store.Store, p *paths.Paths, logger *log.Logger) *Doctor {
	if logger == nil {
		logger = log.Default()
	}
	return &Doctor{store: st, paths: p, log: logger}
}

// Run executes every check and returns the findings, package findings
// first, ordered by package name.
func (d *Doctor) Run(opts Options) ([]Finding, error) {
	records, err := d.store.List()
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, rec := range records {
		findings = append(findings, d.checkRecord(rec, opts)...)
	}
	findings = append(findings, d.checkOrphanSymlinks(records)...)
	findings = append(findings, d.checkOrphanArtifacts(records)...)
	findings = append(findings, d.checkLock()...)
	findings = append(findings, d.checkConfig()...)
	return findings, nil
}

// checkRecord validates one package's on-disk state.
func (d *Doctor) checkRecord(rec *store.Record, opts Options) []Finding {
	var findings []Finding

	if rec.InstallPath == "" || !d.paths.Contains(rec.InstallPath) {
		findings = append(findings, Finding{
			Package: rec.Name, Severity: SeverityError, Check: "install_path",
			Detail: fmt.Sprintf("recorded install path %q is outside the managed root", rec.InstallPath),
		})
		return findings
	}
	if _, err := os.Stat(rec.InstallPath); err != nil {
		findings = append(findings, Finding{
			Package: rec.Name, Severity: SeverityError, Check: "install_path",
			Detail: fmt.Sprintf("install directory missing: %s", rec.InstallPath),
		})
		return findings
	}
	if _, err := os.Stat(rec.ExecPath); err != nil {
		findings = append(findings, Finding{
			Package: rec.Name, Severity: SeverityError, Check: "exec_path",
			Detail: fmt.Sprintf("executable missing: %s", rec.ExecPath),
		})
	}

	if rec.SymlinkPath != "" {
		target, err := os.Readlink(rec.SymlinkPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			findings = append(findings, Finding{
				Package: rec.Name, Severity: SeverityError, Check: "symlink",
				Detail:     fmt.Sprintf("symlink missing: %s", rec.SymlinkPath),
				Repairable: true,
			})
		case err != nil:
			findings = append(findings, Finding{
				Package: rec.Name, Severity: SeverityError, Check: "symlink",
				Detail: fmt.Sprintf("%s is not a symlink", rec.SymlinkPath),
			})
		case target != rec.ExecPath:
			findings = append(findings, Finding{
				Package: rec.Name, Severity: SeverityError, Check: "symlink",
				Detail:     fmt.Sprintf("symlink points at %s, expected %s", target, rec.ExecPath),
				Repairable: true,
			})
		}
	}

	if rec.DesktopEntryPath != "" {
		if _, err := os.Stat(rec.DesktopEntryPath); err != nil {
			findings = append(findings, Finding{
				Package: rec.Name, Severity: SeverityWarning, Check: "desktop_entry",
				Detail: fmt.Sprintf("desktop entry missing: %s", rec.DesktopEntryPath),
			})
		}
	}

	if opts.VerifyChecksums && rec.Checksum != "" && singleFileKind(rec.Kind) {
		if err := verify.VerifyFile(rec.ExecPath, rec.Checksum); err != nil {
			findings = append(findings, Finding{
				Package: rec.Name, Severity: SeverityError, Check: "checksum",
				Detail: err.Error(),
			})
		}
	}

	return findings
}

// singleFileKind reports whether the installed artifact is the same
// file that was downloaded, so its recorded digest still applies.
func singleFileKind(kind platform.Kind) bool {
	return kind == platform.KindBinary || kind == platform.KindAppImage
}

// checkOrphanSymlinks reports symlinks in the managed symlink directory
// that no record claims.
func (d *Doctor) checkOrphanSymlinks(records []*store.Record) []Finding {
	claimed := make(map[string]bool, len(records))
	for _, rec := range records {
		claimed[rec.SymlinkPath] = true
	}

	entries, err := os.ReadDir(d.paths.SymlinksDir)
	if err != nil {
		return nil
	}
	var findings []Finding
	for _, entry := range entries {
		path := filepath.Join(d.paths.SymlinksDir, entry.Name())
		if !claimed[path] {
			findings = append(findings, Finding{
				Severity: SeverityWarning, Check: "orphan_symlink",
				Detail:     fmt.Sprintf("no package owns %s", path),
				Path:       path,
				Repairable: true,
			})
		}
	}
	return findings
}

// checkOrphanArtifacts reports install directories no record claims.
func (d *Doctor) checkOrphanArtifacts(records []*store.Record) []Finding {
	claimed := make(map[string]bool, len(records))
	for _, rec := range records {
		claimed[rec.InstallPath] = true
	}

	var findings []Finding
	for _, dir := range d.paths.InstallDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if !claimed[path] {
				findings = append(findings, Finding{
					Severity: SeverityWarning, Check: "orphan_artifact",
					Detail: fmt.Sprintf("no package owns %s", path),
				})
			}
		}
	}
	return findings
}

// checkLock reports a lock file left behind by a dead process.
func (d *Doctor) checkLock() []Finding {
	holder, err := lockfile.ReadHolder(d.paths.LockFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return []Finding{{
			Severity: SeverityWarning, Check: "lock",
			Detail:     "lock file is unreadable or corrupt",
			Repairable: true,
		}}
	}
	if !holder.Alive() {
		return []Finding{{
			Severity: SeverityWarning, Check: "lock",
			Detail:     fmt.Sprintf("stale lock held by dead pid %d (%s)", holder.PID, holder.Operation),
			Repairable: true,
		}}
	}
	return nil
}

// checkConfig reports an unparseable configuration file.
func (d *Doctor) checkConfig() []Finding {
	if _, err := config.Load(d.paths.ConfigFile); err != nil {
		return []Finding{{
			Severity: SeverityError, Check: "config",
			Detail: err.Error(),
		}}
	}
	return nil
}

// Repair fixes every repairable finding: recreates symlinks, removes
// orphan symlinks, and clears stale locks. It returns the findings it
// fixed.
func (d *Doctor) Repair(findings []Finding) ([]Finding, error) {
	var repaired []Finding
	for _, f := range findings {
		if !f.Repairable {
			continue
		}
		var err error
		switch f.Check {
		case "symlink":
			var rec *store.Record
			if rec, err = d.store.Get(f.Package); err == nil {
				os.Remove(rec.SymlinkPath)
				err = fsutil.EnsureSymlink(rec.ExecPath, rec.SymlinkPath)
			}
		case "orphan_symlink":
			err = d.removeOrphanSymlink(f.Path)
		case "lock":
			// Acquiring the operation lock may already have reclaimed the
			// stale file; never remove a live holder's lock.
			if holder, herr := lockfile.ReadHolder(d.paths.LockFile); herr == nil && holder.Alive() {
				repaired = append(repaired, f)
				continue
			}
			err = os.Remove(d.paths.LockFile)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		default:
			continue
		}
		if err != nil {
			d.log.Warn("repair failed", "check", f.Check, "package", f.Package, "err", err)
			continue
		}
		repaired = append(repaired, f)
	}
	return repaired, nil
}

func (d *Doctor) removeOrphanSymlink(path string) error {
	if filepath.Dir(path) != d.paths.SymlinksDir {
		return fmt.Errorf("refusing to remove %s: outside the symlink directory", path)
	}
	return os.Remove(path)
}
