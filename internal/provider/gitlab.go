package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

const gitlabAPIBase = "https://gitlab.com"

// GitLab resolves releases through the GitLab REST API.
type GitLab struct {
	client  *Client
	baseURL string
}

// NewGitLab builds a GitLab source. baseURL points at a self-hosted
// instance; empty means gitlab.com.
func NewGitLab(client *Client, baseURL string) *GitLab {
	if baseURL == "" {
		baseURL = gitlabAPIBase
	}
	return &GitLab{client: client, baseURL: baseURL}
}

func (g *GitLab) Kind() Kind { return KindGitLab }

type gitlabRelease struct {
	TagName         *string    `json:"tag_name"`
	Name            *string    `json:"name"`
	ReleasedAt      *time.Time `json:"released_at"`
	UpcomingRelease *bool      `json:"upcoming_release"`
	Assets          *struct {
		Links []gitlabLink `json:"links"`
	} `json:"assets"`
}

type gitlabLink struct {
	Name      *string `json:"name"`
	URL       *string `json:"url"`
	DirectURL *string `json:"direct_asset_url"`
}

func (r gitlabRelease) toRelease() Release {
	rel := Release{
		Tag:        strDefault(r.TagName, ""),
		Name:       strDefault(r.Name, ""),
		Prerelease: boolDefault(r.UpcomingRelease, false),
		Versioned:  true,
	}
	if rel.Name == "" {
		rel.Name = rel.Tag
	}
	if r.ReleasedAt != nil {
		rel.PublishedAt = *r.ReleasedAt
	}
	if r.Assets == nil {
		return rel
	}
	for _, link := range r.Assets.Links {
		download := strDefault(link.DirectURL, strDefault(link.URL, ""))
		if download == "" {
			continue
		}
		name := strDefault(link.Name, "")
		if name == "" {
			name = pathBase(download)
		}
		rel.Assets = append(rel.Assets, Asset{Name: name, DownloadURL: download})
	}
	return rel
}

func (g *GitLab) apiURL(ref, suffix string) string {
	return fmt.Sprintf("%s/api/v4/projects/%s/releases%s", g.baseURL, url.PathEscape(ref), suffix)
}

func (g *GitLab) ListReleases(ctx context.Context, ref string) ([]Release, error) {
	var raw []gitlabRelease
	if err := g.client.GetJSON(ctx, KindGitLab, g.apiURL(ref, "?per_page=30"), &raw); err != nil {
		return nil, err
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		releases = append(releases, r.toRelease())
	}
	return releases, nil
}

func (g *GitLab) FetchRelease(ctx context.Context, ref, tag string) (*Release, error) {
	var raw gitlabRelease
	if err := g.client.GetJSON(ctx, KindGitLab, g.apiURL(ref, "/"+url.PathEscape(tag)), &raw); err != nil {
		return nil, err
	}
	rel := raw.toRelease()
	return &rel, nil
}

func (g *GitLab) Download(ctx context.Context, asset Asset, dest string) error {
	return g.client.DownloadFile(ctx, KindGitLab, asset.DownloadURL, dest)
}
