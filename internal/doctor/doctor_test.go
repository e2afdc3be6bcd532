package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/upstream-sh/upstream/internal/paths"
	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/store"
)

func newTestDoctor(t *testing.T) (*Doctor, *store.Store, *paths.Paths) {
	t.Helper()

	home := t.TempDir()
	p := paths.At(home, filepath.Join(home, ".config"))
	if err := p.EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateSchema(); err != nil {
		t.Fatal(err)
	}

	return New(st, p, nil), st, p
}

// installFake lays down a consistent fake install and its record.
func installFake(t *testing.T, st *store.Store, p *paths.Paths, name string) *store.Record {
	t.Helper()

	installDir := filepath.Join(p.BinariesDir, name)
	execPath := filepath.Join(installDir, name)
	symlink := filepath.Join(p.SymlinksDir, name)

	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(execPath, []byte("\x7fELF"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(execPath, symlink); err != nil {
		t.Fatal(err)
	}

	rec := &store.Record{
		Name:        name,
		Repo:        "owner/" + name,
		Provider:    provider.KindGitHub,
		Kind:        platform.KindBinary,
		Channel:     provider.ChannelStable,
		Version:     "v1.0.0",
		InstallPath: installDir,
		ExecPath:    execPath,
		SymlinkPath: symlink,
	}
	if err := st.Upsert(rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func findingsFor(findings []Finding, pkg, check string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Package == pkg && f.Check == check {
			out = append(out, f)
		}
	}
	return out
}

func TestRunHealthyTree(t *testing.T) {
	d, st, p := newTestDoctor(t)
	installFake(t, st, p, "tool")

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("Run() on healthy tree = %v, want none", findings)
	}
}

func TestRunReportsMissingInstall(t *testing.T) {
	d, st, p := newTestDoctor(t)
	rec := installFake(t, st, p, "tool")
	if err := os.RemoveAll(rec.InstallPath); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(findingsFor(findings, "tool", "install_path")) != 1 {
		t.Errorf("missing install not reported: %v", findings)
	}
}

func TestRunReportsDanglingSymlink(t *testing.T) {
	d, st, p := newTestDoctor(t)
	rec := installFake(t, st, p, "tool")
	installFake(t, st, p, "other")

	// Break only tool's symlink.
	if err := os.Remove(rec.SymlinkPath); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	broken := findingsFor(findings, "tool", "symlink")
	if len(broken) != 1 || !broken[0].Repairable {
		t.Fatalf("dangling symlink not reported as repairable: %v", findings)
	}
	if len(findingsFor(findings, "other", "symlink")) != 0 {
		t.Error("healthy package reported broken")
	}
}

func TestRepairRecreatesSymlink(t *testing.T) {
	d, st, p := newTestDoctor(t)
	rec := installFake(t, st, p, "tool")
	if err := os.Remove(rec.SymlinkPath); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatal(err)
	}
	repaired, err := d.Repair(findings)
	if err != nil {
		t.Fatalf("Repair() error: %v", err)
	}
	if len(repaired) != 1 {
		t.Fatalf("Repair() fixed %d findings, want 1", len(repaired))
	}

	target, err := os.Readlink(rec.SymlinkPath)
	if err != nil || target != rec.ExecPath {
		t.Errorf("symlink not recreated: %q, %v", target, err)
	}

	after, err := d.Run(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 0 {
		t.Errorf("findings remain after repair: %v", after)
	}
}

func TestRunReportsOrphans(t *testing.T) {
	d, st, p := newTestDoctor(t)
	installFake(t, st, p, "tool")

	if err := os.Symlink("/nonexistent", filepath.Join(p.SymlinksDir, "ghost")); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(p.BinariesDir, "stray"), 0o755); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatal(err)
	}

	var orphanLinks, orphanArtifacts int
	for _, f := range findings {
		switch f.Check {
		case "orphan_symlink":
			orphanLinks++
		case "orphan_artifact":
			orphanArtifacts++
		}
	}
	if orphanLinks != 1 || orphanArtifacts != 1 {
		t.Errorf("orphans = %d links, %d artifacts; want 1 each: %v", orphanLinks, orphanArtifacts, findings)
	}
}

func TestRunReportsStaleLock(t *testing.T) {
	d, _, p := newTestDoctor(t)

	// A pid far beyond the Linux maximum, so the holder reads as dead.
	if err := os.WriteFile(p.LockFile, []byte("pid=134217728\noperation=install\nstarted_at_unix=0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatal(err)
	}
	var lockFindings []Finding
	for _, f := range findings {
		if f.Check == "lock" {
			lockFindings = append(lockFindings, f)
		}
	}
	if len(lockFindings) != 1 || !lockFindings[0].Repairable {
		t.Fatalf("stale lock not reported: %v", findings)
	}

	if _, err := d.Repair(findings); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}
	if _, err := os.Stat(p.LockFile); !os.IsNotExist(err) {
		t.Error("stale lock still present after repair")
	}
}

func TestRunReportsChecksumMismatch(t *testing.T) {
	d, st, p := newTestDoctor(t)
	rec := installFake(t, st, p, "tool")

	rec.Checksum = "0000000000000000000000000000000000000000000000000000000000000000"
	if err := st.Upsert(rec); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{VerifyChecksums: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(findingsFor(findings, "tool", "checksum")) != 1 {
		t.Errorf("checksum mismatch not reported: %v", findings)
	}

	// Without the option the expensive check stays off.
	findings, err = d.Run(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(findingsFor(findings, "tool", "checksum")) != 0 {
		t.Error("checksum check ran without VerifyChecksums")
	}
}

func TestRunReportsBadConfig(t *testing.T) {
	d, _, p := newTestDoctor(t)

	if err := os.MkdirAll(p.ConfigDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.ConfigFile, []byte("network = [broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	findings, err := d.Run(Options{})
	if err != nil {
		t.Fatal(err)
	}
	var configFindings int
	for _, f := range findings {
		if f.Check == "config" {
			configFindings++
		}
	}
	if configFindings != 1 {
		t.Errorf("bad config not reported: %v", findings)
	}
}
