package provider

import "fmt"

// Registry hands out the Source for each provider variant, all sharing
// one HTTP client.
type Registry struct {
	github  *GitHub
	gitlab  *GitLab
	gitea   *Gitea
	direct  *Direct
	scraper *Scraper
}

// BaseURLs overrides API endpoints for self-hosted instances. Empty
// fields keep the public defaults.
type BaseURLs struct {
	GitHub string
	GitLab string
	Gitea  string
}

// NewRegistry builds every provider variant around the given client.
func NewRegistry(client *Client, bases BaseURLs) *Registry {
	return &Registry{
		github:  NewGitHub(client, bases.GitHub),
		gitlab:  NewGitLab(client, bases.GitLab),
		gitea:   NewGitea(client, bases.Gitea),
		direct:  NewDirect(client),
		scraper: NewScraper(client),
	}
}

// Source returns the variant for kind.
func (r *Registry) Source(kind Kind) (Source, error) {
	switch kind {
	case KindGitHub:
		return r.github, nil
	case KindGitLab:
		return r.gitlab, nil
	case KindGitea:
		return r.gitea, nil
	case KindDirect:
		return r.direct, nil
	case KindScrape:
		return r.scraper, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}
