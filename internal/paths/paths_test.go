package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtLayout(t *testing.T) {
	p := At("/home/u", "/home/u/.config")

	if p.DataDir != filepath.Join("/home/u", ".upstream") {
		t.Errorf("DataDir = %q, want ~/.upstream", p.DataDir)
	}
	if p.ConfigFile != filepath.Join("/home/u/.config", "upstream", "config.toml") {
		t.Errorf("ConfigFile = %q", p.ConfigFile)
	}
	if p.LockFile != filepath.Join(p.MetadataDir, "lock") {
		t.Errorf("LockFile = %q, want inside metadata dir", p.LockFile)
	}
}

func TestEnsureLayout(t *testing.T) {
	home := t.TempDir()
	p := At(home, filepath.Join(home, ".config"))

	if err := p.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout() error: %v", err)
	}

	for _, dir := range append(p.InstallDirs(), p.SymlinksDir, p.StagingDir, p.MetadataDir) {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected directory %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestContains(t *testing.T) {
	p := At("/home/u", "/home/u/.config")

	tests := []struct {
		path string
		want bool
	}{
		{"/home/u/.upstream/binaries/foo", true},
		{"/home/u/.upstream", true},
		{"/home/u/other", false},
		{"/usr/bin/foo", false},
		{"/home/u/.upstream/../evil", false},
	}
	for _, tt := range tests {
		if got := p.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
