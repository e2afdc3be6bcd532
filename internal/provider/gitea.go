package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

const giteaAPIBase = "https://gitea.com"

// Gitea resolves releases through the Gitea REST API, which also covers
// Forgejo and Codeberg instances.
type Gitea struct {
	client  *Client
	baseURL string
}

// NewGitea builds a Gitea source. baseURL points at the instance; empty
// means gitea.com.
func NewGitea(client *Client, baseURL string) *Gitea {
	if baseURL == "" {
		baseURL = giteaAPIBase
	}
	return &Gitea{client: client, baseURL: baseURL}
}

func (g *Gitea) Kind() Kind { return KindGitea }

type giteaRelease struct {
	TagName     *string      `json:"tag_name"`
	Name        *string      `json:"name"`
	Draft       *bool        `json:"draft"`
	Prerelease  *bool        `json:"prerelease"`
	PublishedAt *time.Time   `json:"published_at"`
	Assets      []giteaAsset `json:"assets"`
}

type giteaAsset struct {
	Name               *string `json:"name"`
	BrowserDownloadURL *string `json:"browser_download_url"`
	Size               *int64  `json:"size"`
}

func (r giteaRelease) toRelease() Release {
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
		download := strDefault(a.BrowserDownloadURL, "")
		if download == "" {
			continue
		}
		asset := Asset{
			Name:        strDefault(a.Name, pathBase(download)),
			DownloadURL: download,
		}
		if a.Size != nil {
			asset.Size = *a.Size
		}
		rel.Assets = append(rel.Assets, asset)
	}
	return rel
}

func (g *Gitea) ListReleases(ctx context.Context, ref string) ([]Release, error) {
	u := fmt.Sprintf("%s/api/v1/repos/%s/releases?limit=30", g.baseURL, ref)

	var raw []giteaRelease
	if err := g.client.GetJSON(ctx, KindGitea, u, &raw); err != nil {
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

func (g *Gitea) FetchRelease(ctx context.Context, ref, tag string) (*Release, error) {
	u := fmt.Sprintf("%s/api/v1/repos/%s/releases/tags/%s", g.baseURL, ref, url.PathEscape(tag))

	var raw giteaRelease
	if err := g.client.GetJSON(ctx, KindGitea, u, &raw); err != nil {
		return nil, err
	}
	rel := raw.toRelease()
	return &rel, nil
}

func (g *Gitea) Download(ctx context.Context, asset Asset, dest string) error {
	return g.client.DownloadFile(ctx, KindGitea, asset.DownloadURL, dest)
}
