package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/upstream-sh/upstream/internal/config"
	"github.com/upstream-sh/upstream/internal/engine"
	"github.com/upstream-sh/upstream/internal/lockfile"
	"github.com/upstream-sh/upstream/internal/output"
	"github.com/upstream-sh/upstream/internal/paths"
	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/store"
)

// env bundles the collaborators every command needs.
type env struct {
	paths  *paths.Paths
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
}

// openEnv wires paths, config, store, providers, and the engine. The
// caller must Close it.
func openEnv() (*env, error) {
	p, err := paths.Default()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(p.ConfigFile)
	if err != nil {
		return nil, err
	}

	st, err := store.New(p.DBFile)
	if err != nil {
		return nil, err
	}

	client := provider.NewClient(
		time.Duration(cfg.Network.TimeoutSeconds)*time.Second,
		cfg.Network.Retries,
	)
	client.SetProgress(func(total int64, description string) provider.Progress {
		return output.NewProgress(total, description)
	})
	for name, pc := range cfg.Provider {
		if pc.Token == "" {
			continue
		}
		if kind, ok := provider.ParseProviderKind(name); ok {
			client.SetToken(kind, pc.Token)
		}
	}
	registry := provider.NewRegistry(client, provider.BaseURLs{
		GitHub: cfg.Provider["github"].BaseURL,
		GitLab: cfg.Provider["gitlab"].BaseURL,
		Gitea:  cfg.Provider["gitea"].BaseURL,
	})

	eng := engine.New(engine.Options{
		Store:   st,
		Paths:   p,
		Config:  cfg,
		Sources: registry,
		Logger:  logger,
	})

	return &env{paths: p, cfg: cfg, store: st, engine: eng}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// withLock runs fn while holding the operation lock. Read-only commands
// never call this.
func (e *env) withLock(operation string, fn func() error) error {
	lock, err := lockfile.Acquire(e.paths.LockFile, operation)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// batchError turns failed results into a command error so the process
// exits nonzero when any package in a batch failed.
func batchError(results []*engine.Result) error {
	var failed []string
	for _, res := range results {
		if res.Failed() {
			failed = append(failed, res.Name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d package(s) failed: %s", len(failed), strings.Join(failed, ", "))
}
