package store

import (
	"time"

	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
)

// Record is the durable metadata for one installed package. Name is the
// unique key. InstallPath is always inside the managed root; SymlinkPath,
// when set, must resolve to ExecPath after any successful operation.
type Record struct {
	Name     string
	Repo     string
	Provider provider.Kind
	Kind     platform.Kind
	Channel  provider.Channel
	Pinned   bool

	Version          string
	InstallPath      string
	ExecPath         string
	Checksum         string
	SymlinkPath      string
	DesktopEntryPath string

	// MatchPattern and ExcludePattern carry the user's asset selection
	// preferences across upgrades.
	MatchPattern   string
	ExcludePattern string

	// ETag caches the conditional-request validator for providers
	// without version metadata (direct, scrape).
	ETag string

	LastCheckedAt time.Time
	LastUpdatedAt time.Time
}

// DisplayName renders the record for log and table output.
func (r *Record) DisplayName() string {
	return r.Name + " (" + string(r.Provider) + ":" + r.Repo + ")"
}
