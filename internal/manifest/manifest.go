// Package manifest reads and writes the portable package list used by
// export and import, plus full tar.gz snapshots of the managed root.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/store"
)

// Version is the current manifest format version.
const Version = 1

// Entry is one package in a manifest. Paths and checksums are machine
// specific and deliberately not exported.
type Entry struct {
	Name           string           `json:"name"`
	Repo           string           `json:"repo"`
	Provider       provider.Kind    `json:"provider"`
	Kind           platform.Kind    `json:"kind,omitempty"`
	Channel        provider.Channel `json:"channel,omitempty"`
	Pinned         bool             `json:"pinned,omitempty"`
	Version        string           `json:"version,omitempty"`
	MatchPattern   string           `json:"match_pattern,omitempty"`
	ExcludePattern string           `json:"exclude_pattern,omitempty"`
}

// Manifest is the exported package list.
type Manifest struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Packages   []Entry   `json:"packages"`
}

// FromRecords builds a manifest from store records, ordered by name.
func FromRecords(records []*store.Record, now time.Time) *Manifest {
	m := &Manifest{Version: Version, ExportedAt: now.UTC()}
	for _, rec := range records {
		m.Packages = append(m.Packages, Entry{
			Name:           rec.Name,
			Repo:           rec.Repo,
			Provider:       rec.Provider,
			Kind:           rec.Kind,
			Channel:        rec.Channel,
			Pinned:         rec.Pinned,
			Version:        rec.Version,
			MatchPattern:   rec.MatchPattern,
			ExcludePattern: rec.ExcludePattern,
		})
	}
	sort.Slice(m.Packages, func(i, j int) bool {
		return m.Packages[i].Name < m.Packages[j].Name
	})
	return m
}

// Write saves the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %d (expected %d)", m.Version, Version)
	}
	for i, entry := range m.Packages {
		if entry.Name == "" || entry.Repo == "" {
			return nil, fmt.Errorf("manifest entry %d is missing a name or repo", i)
		}
		if _, ok := provider.ParseProviderKind(string(entry.Provider)); !ok {
			return nil, fmt.Errorf("manifest entry %q has unknown provider %q", entry.Name, entry.Provider)
		}
	}
	return &m, nil
}

// IsSnapshot reports whether path looks like a full snapshot archive
// rather than a JSON manifest.
func IsSnapshot(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}
