package manifest

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/store"
)

func TestFromRecordsOrdersByName(t *testing.T) {
	records := []*store.Record{
		{Name: "zoxide", Repo: "ajeetdsouza/zoxide", Provider: provider.KindGitHub},
		{Name: "bat", Repo: "sharkdp/bat", Provider: provider.KindGitHub, Pinned: true},
	}

	m := FromRecords(records, time.Now())
	if len(m.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(m.Packages))
	}
	if m.Packages[0].Name != "bat" || m.Packages[1].Name != "zoxide" {
		t.Errorf("packages not ordered by name: %s, %s", m.Packages[0].Name, m.Packages[1].Name)
	}
	if !m.Packages[0].Pinned {
		t.Error("pinned flag lost")
	}
	if m.Version != Version {
		t.Errorf("manifest version = %d, want %d", m.Version, Version)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.json")

	m := FromRecords([]*store.Record{
		{
			Name:         "fd",
			Repo:         "sharkdp/fd",
			Provider:     provider.KindGitHub,
			Kind:         platform.KindArchive,
			Channel:      provider.ChannelStable,
			Version:      "v9.0.0",
			MatchPattern: "musl",
		},
	}, time.Now())
	if err := m.Write(path); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := loaded.Packages[0]
	if got.Repo != "sharkdp/fd" || got.MatchPattern != "musl" || got.Version != "v9.0.0" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestLoadRejectsBadManifests(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"bad version":      `{"version": 99, "packages": []}`,
		"missing name":     `{"version": 1, "packages": [{"repo": "a/b", "provider": "github"}]}`,
		"unknown provider": `{"version": 1, "packages": [{"name": "x", "repo": "a/b", "provider": "svn"}]}`,
		"not json":         `nope`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, "m.json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("Load() should fail for %s", name)
		}
	}
}

func TestIsSnapshot(t *testing.T) {
	if !IsSnapshot("backup.tar.gz") || !IsSnapshot("backup.TGZ") {
		t.Error("IsSnapshot() should accept tar.gz and tgz")
	}
	if IsSnapshot("packages.json") {
		t.Error("IsSnapshot() should reject JSON manifests")
	}
}

func TestImportSnapshotRejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	content := []byte("bad")
	hdr := &tar.Header{Name: "../escape", Mode: 0o644, Size: int64(len(content))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dst := t.TempDir()
	if err := ImportSnapshot(archive, dst); err == nil {
		t.Error("ImportSnapshot() should reject entries that escape the data directory")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "escape")); !os.IsNotExist(err) {
		t.Error("traversal entry was written outside the data directory")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "binaries", "tool"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "binaries", "tool", "tool"), []byte("\x7fELF"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "symlinks"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../binaries/tool/tool", filepath.Join(src, "symlinks", "tool")); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), "snap.tar.gz")
	if err := ExportSnapshot(src, archive); err != nil {
		t.Fatalf("ExportSnapshot() error: %v", err)
	}

	dst := t.TempDir()
	if err := ImportSnapshot(archive, dst); err != nil {
		t.Fatalf("ImportSnapshot() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "binaries", "tool", "tool"))
	if err != nil || string(data) != "\x7fELF" {
		t.Errorf("restored file = %q, %v", data, err)
	}
	info, err := os.Stat(filepath.Join(dst, "binaries", "tool", "tool"))
	if err != nil || info.Mode().Perm()&0o111 == 0 {
		t.Error("executable bit lost in snapshot round trip")
	}
	target, err := os.Readlink(filepath.Join(dst, "symlinks", "tool"))
	if err != nil || target != "../binaries/tool/tool" {
		t.Errorf("symlink target = %q, %v", target, err)
	}
}
