package engine

import (
	"context"

	"github.com/upstream-sh/upstream/internal/provider"
	"github.com/upstream-sh/upstream/internal/store"
)

// UpgradeOptions controls upgrade behavior.
type UpgradeOptions struct {
	// Force upgrades pinned packages too.
	Force bool

	// CheckOnly reports what would happen without mutating anything,
	// including the stored last-checked timestamps.
	CheckOnly bool
}

// Upgrade moves one installed package to its latest eligible release.
// Pinned packages are skipped unless forced; packages already at the
// latest release are reported as current.
func (e *Engine) Upgrade(ctx context.Context, name string, opts UpgradeOptions) *Result {
	res := &Result{Name: name, State: StateIdle, Versioned: true}

	rec, err := e.store.Get(name)
	if err != nil {
		return fail(res, StateIdle, err)
	}
	res.OldVersion = rec.Version

	if rec.Pinned && !opts.Force {
		res.Skipped = true
		res.Reason = "pinned"
		return res
	}

	res.State = StateResolving
	src, err := e.sources.Source(rec.Provider)
	if err != nil {
		return fail(res, StateResolving, err)
	}

	// Providers without version metadata are checked with conditional
	// requests instead of release comparison.
	if cond, ok := src.(provider.ConditionalSource); ok {
		return e.upgradeConditional(ctx, rec, cond, opts, res)
	}

	p, err := e.plan(ctx, specFromRecord(rec))
	if err != nil {
		return fail(res, StateResolving, err)
	}
	res.NewVersion = p.rel.Tag

	if !provider.IsNewer(p.rel.Tag, rec.Version) {
		res.Skipped = true
		res.Reason = "already current"
		if !opts.CheckOnly {
			e.touchChecked(rec)
		}
		return res
	}

	if opts.CheckOnly {
		res.Reason = "update available"
		return res
	}
	return e.apply(ctx, p, rec, res)
}

// UpgradeAll upgrades every installed package, one Result per package.
func (e *Engine) UpgradeAll(ctx context.Context, opts UpgradeOptions) ([]*Result, error) {
	records, err := e.store.List()
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(records))
	for _, rec := range records {
		results = append(results, e.Upgrade(ctx, rec.Name, opts))
	}
	return results, nil
}

// upgradeConditional decides freshness for direct-URL and scraped
// packages via If-Modified-Since / If-None-Match.
func (e *Engine) upgradeConditional(ctx context.Context, rec *store.Record, cond provider.ConditionalSource, opts UpgradeOptions, res *Result) *Result {
	res.Versioned = false

	since := rec.LastUpdatedAt
	if since.IsZero() {
		since = rec.LastCheckedAt
	}
	modified, etag, err := cond.Modified(ctx, rec.Repo, since, rec.ETag)
	if err != nil {
		return fail(res, StateResolving, err)
	}

	if !modified {
		res.Skipped = true
		res.Reason = "already current"
		if !opts.CheckOnly {
			rec.ETag = etag
			e.touchChecked(rec)
		}
		return res
	}

	if opts.CheckOnly {
		res.Reason = "unversioned source modified"
		return res
	}

	p, err := e.plan(ctx, specFromRecord(rec))
	if err != nil {
		return fail(res, StateResolving, err)
	}
	res.NewVersion = p.rel.Tag
	applied := e.apply(ctx, p, rec, res)
	if applied.State == StateDone && etag != "" {
		if stored, err := e.store.Get(rec.Name); err == nil {
			stored.ETag = etag
			if err := e.store.Upsert(stored); err != nil {
				e.log.Warn("failed to persist etag", "package", rec.Name, "err", err)
			}
		}
	}
	return applied
}

func (e *Engine) touchChecked(rec *store.Record) {
	rec.LastCheckedAt = e.now().UTC()
	if err := e.store.Upsert(rec); err != nil {
		e.log.Warn("failed to update check timestamp", "package", rec.Name, "err", err)
	}
}

func specFromRecord(rec *store.Record) InstallSpec {
	return InstallSpec{
		Name:           rec.Name,
		Ref:            rec.Repo,
		Provider:       rec.Provider,
		Kind:           rec.Kind,
		Channel:        rec.Channel,
		MatchPattern:   rec.MatchPattern,
		ExcludePattern: rec.ExcludePattern,
	}
}
