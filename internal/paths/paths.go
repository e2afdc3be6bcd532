// Package paths defines the on-disk layout of everything upstream manages.
//
// All installed artifacts live under a single managed root (~/.upstream by
// default) so that a full snapshot is one directory tree and removal is
// unambiguous. Configuration lives under the user config directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths holds every directory and file location upstream reads or writes.
type Paths struct {
	// DataDir is the managed root. Every install_path must be inside it.
	DataDir   string
	ConfigDir string

	BinariesDir  string
	AppImagesDir string
	ArchivesDir  string
	SymlinksDir  string
	StagingDir   string
	MetadataDir  string

	// ApplicationsDir is where desktop entries are written. It is outside
	// the managed root on purpose: desktop environments only scan there.
	ApplicationsDir string

	ConfigFile string
	DBFile     string
	LockFile   string
}

// Default resolves the standard layout from the user's home directory.
func Default() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config directory: %w", err)
	}
	return At(home, configRoot), nil
}

// At builds the layout rooted at the given home and config directories.
// Tests use this to point upstream at a temporary tree.
func At(home, configRoot string) *Paths {
	dataDir := filepath.Join(home, ".upstream")
	configDir := filepath.Join(configRoot, "upstream")
	metadataDir := filepath.Join(dataDir, "metadata")

	return &Paths{
		DataDir:   dataDir,
		ConfigDir: configDir,

		BinariesDir:  filepath.Join(dataDir, "binaries"),
		AppImagesDir: filepath.Join(dataDir, "appimages"),
		ArchivesDir:  filepath.Join(dataDir, "archives"),
		SymlinksDir:  filepath.Join(dataDir, "symlinks"),
		StagingDir:   filepath.Join(dataDir, "staging"),
		MetadataDir:  metadataDir,

		ApplicationsDir: filepath.Join(home, ".local", "share", "applications"),

		ConfigFile: filepath.Join(configDir, "config.toml"),
		DBFile:     filepath.Join(metadataDir, "packages.db"),
		LockFile:   filepath.Join(metadataDir, "lock"),
	}
}

// EnsureLayout creates every managed directory that does not exist yet.
func (p *Paths) EnsureLayout() error {
	dirs := []string{
		p.DataDir,
		p.ConfigDir,
		p.BinariesDir,
		p.AppImagesDir,
		p.ArchivesDir,
		p.SymlinksDir,
		p.StagingDir,
		p.MetadataDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// InstallDirs returns the directories that hold committed artifacts.
func (p *Paths) InstallDirs() []string {
	return []string{p.BinariesDir, p.AppImagesDir, p.ArchivesDir}
}

// Contains reports whether path is inside the managed root.
func (p *Paths) Contains(path string) bool {
	rel, err := filepath.Rel(p.DataDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
