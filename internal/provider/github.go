package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

const githubAPIBase = "https://api.github.com"

// GitHub resolves releases through the GitHub REST API.
type GitHub struct {
	client  *Client
	baseURL string
}

// NewGitHub builds a GitHub source. baseURL overrides the public API
// endpoint, for GitHub Enterprise installs; empty means api.github.com.
func NewGitHub(client *Client, baseURL string) *GitHub {
	if baseURL == "" {
		baseURL = githubAPIBase
	}
	return &GitHub{client: client, baseURL: baseURL}
}

func (g *GitHub) Kind() Kind { return KindGitHub }

// githubRelease mirrors the subset of the release payload upstream uses.
// Pointer fields tolerate explicit nulls in the response.
type githubRelease struct {
	TagName     *string       `json:"tag_name"`
	Name        *string       `json:"name"`
	Draft       *bool         `json:"draft"`
	Prerelease  *bool         `json:"prerelease"`
	PublishedAt *time.Time    `json:"published_at"`
	Assets      []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               *string `json:"name"`
	BrowserDownloadURL *string `json:"browser_download_url"`
	Size               *int64  `json:"size"`
	ContentType        *string `json:"content_type"`
}

func (r githubRelease) toRelease() Release {
	rel := Release{
		Tag:        strDefault(r.TagName, ""),
		Name:       strDefault(r.Name, ""),
		Draft:      boolDefault(r.Draft, false),
		Prerelease: boolDefault(r.Prerelease, false),
		Versioned:  true,
	}
	if rel.Name == "" {
		rel.Name = rel.Tag
	}
	if r.PublishedAt != nil {
		rel.PublishedAt = *r.PublishedAt
	}
	for _, a := range r.Assets {
		asset := Asset{
			Name:        strDefault(a.Name, ""),
			DownloadURL: strDefault(a.BrowserDownloadURL, ""),
			ContentType: strDefault(a.ContentType, ""),
		}
		if a.Size != nil {
			asset.Size = *a.Size
		}
		if asset.Name == "" && asset.DownloadURL != "" {
			asset.Name = pathBase(asset.DownloadURL)
		}
		if asset.DownloadURL == "" {
			// Nothing to download; skip rather than fail the release.
			continue
		}
		rel.Assets = append(rel.Assets, asset)
	}
	return rel
}

func (g *GitHub) ListReleases(ctx context.Context, ref string) ([]Release, error) {
	u := fmt.Sprintf("%s/repos/%s/releases?per_page=30", g.baseURL, ref)

	var raw []githubRelease
	if err := g.client.GetJSON(ctx, KindGitHub, u, &raw); err != nil {
		return nil, err
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		rel := r.toRelease()
		if rel.Draft {
			continue
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

func (g *GitHub) FetchRelease(ctx context.Context, ref, tag string) (*Release, error) {
	u := fmt.Sprintf("%s/repos/%s/releases/tags/%s", g.baseURL, ref, url.PathEscape(tag))

	var raw githubRelease
	if err := g.client.GetJSON(ctx, KindGitHub, u, &raw); err != nil {
		return nil, err
	}
	rel := raw.toRelease()
	return &rel, nil
}

func (g *GitHub) Download(ctx context.Context, asset Asset, dest string) error {
	return g.client.DownloadFile(ctx, KindGitHub, asset.DownloadURL, dest)
}

func strDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func boolDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
