package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/upstream-sh/upstream/internal/manifest"
	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
)

// resolveParallelism bounds concurrent release resolutions during import.
const resolveParallelism = 4

// ImportOptions controls manifest import behavior.
type ImportOptions struct {
	// SkipFailed continues past entries that fail to resolve or install
	// instead of aborting the whole import.
	SkipFailed bool
}

// Import installs every package in the manifest. Resolution runs in
// parallel since it is network bound; installs then run sequentially so
// disk mutations stay serialized under the single operation lock.
func (e *Engine) Import(ctx context.Context, m *manifest.Manifest, opts ImportOptions) ([]*Result, error) {
	specs := make([]InstallSpec, len(m.Packages))
	for i, entry := range m.Packages {
		specs[i] = specFromEntry(entry)
	}

	plans := make([]*plan, len(specs))
	planErrs := make([]error, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveParallelism)
	for i := range specs {
		i := i
		g.Go(func() error {
			p, err := e.plan(gctx, specs[i])
			if err != nil {
				planErrs[i] = err
				if opts.SkipFailed {
					return nil
				}
				return fmt.Errorf("failed to resolve %s: %w", specs[i].Name, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(specs))
	for i, spec := range specs {
		res := &Result{Name: spec.Name, State: StateIdle, Versioned: true}
		if planErrs[i] != nil {
			results = append(results, fail(res, StateResolving, planErrs[i]))
			continue
		}

		if _, err := e.store.Get(spec.Name); err == nil {
			res.Skipped = true
			res.Reason = "already installed"
			results = append(results, res)
			continue
		}

		p := plans[i]
		res.Versioned = p.rel.Versioned
		res.NewVersion = p.rel.Tag
		res = e.apply(ctx, p, nil, res)
		if res.Failed() && !opts.SkipFailed {
			results = append(results, res)
			return results, fmt.Errorf("failed to install %s: %w", spec.Name, res.Err)
		}
		if res.State == StateDone && spec.pinAfterInstall {
			if err := e.store.SetPinned(spec.Name, true); err != nil {
				e.log.Warn("failed to restore pin", "package", spec.Name, "err", err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func specFromEntry(entry manifest.Entry) InstallSpec {
	kind := entry.Kind
	if kind == "" {
		kind = platform.KindAuto
	}
	channel := entry.Channel
	if channel == "" {
		channel = provider.ChannelStable
	}
	return InstallSpec{
		Name:            entry.Name,
		Ref:             entry.Repo,
		Provider:        entry.Provider,
		Kind:            kind,
		Channel:         channel,
		MatchPattern:    entry.MatchPattern,
		ExcludePattern:  entry.ExcludePattern,
		pinAfterInstall: entry.Pinned,
	}
}
