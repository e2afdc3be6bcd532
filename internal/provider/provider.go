// Package provider resolves releases and assets from source-hosting
// providers. A closed set of variants implements the Source interface:
// API-backed providers (GitHub, GitLab, Gitea), a direct-URL provider, and
// a page-scraping provider. API responses with null or missing fields are
// normalized with defaults instead of failing the whole resolution.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/upstream-sh/upstream/internal/platform"
)

// Kind identifies a provider variant.
type Kind string

const (
	KindGitHub Kind = "github"
	KindGitLab Kind = "gitlab"
	KindGitea  Kind = "gitea"
	KindDirect Kind = "direct"
	KindScrape Kind = "scrape"
)

// ParseProviderKind converts a user-supplied provider string into a Kind.
func ParseProviderKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindGitHub, KindGitLab, KindGitea, KindDirect, KindScrape:
		return Kind(s), true
	}
	return "", false
}

// Channel is the update track a package follows.
type Channel string

const (
	ChannelStable  Channel = "stable"
	ChannelNightly Channel = "nightly"
)

// ParseChannel converts a user-supplied channel string into a Channel.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelStable, ChannelNightly:
		return Channel(s), true
	}
	return "", false
}

// Asset is a single downloadable file attached to a release.
type Asset struct {
	Name        string
	DownloadURL string
	Size        int64
	ContentType string
}

// Kind classifies the asset by its filename.
func (a Asset) Kind() platform.Kind {
	return platform.ParseFileKind(a.Name)
}

// Release is one published release of a repository. Releases are ephemeral:
// they are produced by a resolution and never persisted.
type Release struct {
	Tag         string
	Name        string
	PublishedAt time.Time
	Prerelease  bool
	Draft       bool
	Assets      []Asset

	// Versioned is false for the direct-URL and scraping variants, whose
	// releases carry no reliable version metadata.
	Versioned bool
}

// Source is the capability set every provider variant implements.
type Source interface {
	// Kind returns the variant tag.
	Kind() Kind

	// ListReleases returns releases for ref, newest first. Drafts are
	// excluded. ref is an owner/repo slug for API providers and a URL for
	// the direct and scraping variants.
	ListReleases(ctx context.Context, ref string) ([]Release, error)

	// FetchRelease returns the release with the given tag.
	FetchRelease(ctx context.Context, ref, tag string) (*Release, error)

	// Download streams an asset to the file at dest.
	Download(ctx context.Context, asset Asset, dest string) error
}

// ConditionalSource is implemented by variants without version metadata.
// Modified reports whether the resource changed since the given time,
// using conditional HTTP requests (If-Modified-Since / If-None-Match).
type ConditionalSource interface {
	Modified(ctx context.Context, ref string, since time.Time, etag string) (bool, string, error)
}

// nightlyMarkers are tag substrings that mark a release as belonging to
// the nightly channel.
var nightlyMarkers = []string{"nightly", "canary", "edge", "unstable"}

// IsNightlyTag reports whether a release tag looks like a nightly build.
func IsNightlyTag(tag string) bool {
	lower := strings.ToLower(tag)
	for _, marker := range nightlyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// OnChannel reports whether a release is eligible for the given channel.
// Drafts are never eligible. Prereleases and nightly-tagged releases ride
// the nightly channel only.
func OnChannel(r Release, channel Channel) bool {
	if r.Draft {
		return false
	}
	nightly := r.Prerelease || IsNightlyTag(r.Tag)
	if channel == ChannelNightly {
		return nightly
	}
	return !nightly
}

// Latest resolves the newest release of ref eligible for channel.
func Latest(ctx context.Context, src Source, ref string, channel Channel) (*Release, error) {
	releases, err := src.ListReleases(ctx, ref)
	if err != nil {
		return nil, err
	}

	var best *Release
	for i := range releases {
		r := releases[i]
		if !OnChannel(r, channel) {
			continue
		}
		if best == nil || CompareVersions(r.Tag, best.Tag) > 0 {
			best = &releases[i]
		}
	}
	if best == nil {
		return nil, &NotFoundError{Ref: ref, Detail: "no releases on channel " + string(channel)}
	}
	return best, nil
}
