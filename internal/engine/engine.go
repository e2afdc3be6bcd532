// Package engine drives the install, upgrade, and remove state machine.
// Every mutation is staged under the staging directory and swapped into
// place only after verification, so a failure at any step leaves the
// previous installation intact.
package engine

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/upstream-sh/upstream/internal/config"
	"github.com/upstream-sh/upstream/internal/extract"
	"github.com/upstream-sh/upstream/internal/paths"
	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/store"
)

// State is the phase an operation is in. Operations walk the states in
// order and stop at Done, Failed, or RolledBack.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateFetching   State = "fetching"
	StateVerifying  State = "verifying"
	StateStaging    State = "staging"
	StateSwapping   State = "swapping"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateRolledBack State = "rolled_back"
)

// Result reports the outcome of one package operation. Batch operations
// return one Result per package; a failure in one never aborts the rest.
type Result struct {
	Name       string
	State      State
	OldVersion string
	NewVersion string

	// Skipped is set when the operation decided not to act (pinned
	// package, already current, already installed).
	Skipped bool
	Reason  string

	// Versioned is false when the package's provider carries no version
	// metadata and freshness was decided by a conditional HTTP request.
	Versioned bool

	// FailedAt records the phase a failed operation was in.
	FailedAt State
	Err      error
}

// Failed reports whether the operation ended in an error state.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// sourceResolver hands out provider variants. Satisfied by
// *provider.Registry in production and by fakes in tests.
type sourceResolver interface {
	Source(kind provider.Kind) (provider.Source, error)
}

// Engine wires the store, the provider registry, and the filesystem
// layout together. All methods that mutate disk expect the caller to
// hold the operation lock.
type Engine struct {
	store     *store.Store
	paths     *paths.Paths
	cfg       *config.Config
	sources   sourceResolver
	extractor extract.Extractor
	log       *log.Logger

	now   func() time.Time
	newID func() string

	// swapHook runs between the swap sub-steps. Tests inject failures
	// here to exercise rollback.
	swapHook func(step string) error
}

// Options carries the engine's collaborators.
type Options struct {
	Store   *store.Store
	Paths   *paths.Paths
	Config  *config.Config
	Sources sourceResolver
	Logger  *log.Logger
}

// New builds an engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:     opts.Store,
		paths:     opts.Paths,
		cfg:       opts.Config,
		sources:   opts.Sources,
		extractor: extract.New(),
		log:       logger,
		now:       time.Now,
		newID:     uuid.NewString,
		swapHook:  func(string) error { return nil },
	}
}
