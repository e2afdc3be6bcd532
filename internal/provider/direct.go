package provider

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Direct treats the package reference as a literal download URL and
// synthesizes a single release holding a single asset. Releases carry no
// version metadata; upgrade checks rely on conditional requests.
type Direct struct {
	client *Client
}

// NewDirect builds a direct-URL source.
func NewDirect(client *Client) *Direct {
	return &Direct{client: client}
}

func (d *Direct) Kind() Kind { return KindDirect }

func (d *Direct) synthesize(ref string) (*Release, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &NotFoundError{Ref: ref, Detail: "not a valid download URL"}
	}
	name := pathBase(u.Path)
	if name == "" || name == "/" {
		name = u.Host
	}
	return &Release{
		Name:      name,
		Versioned: false,
		Assets:    []Asset{{Name: name, DownloadURL: ref}},
	}, nil
}

func (d *Direct) ListReleases(ctx context.Context, ref string) ([]Release, error) {
	rel, err := d.synthesize(ref)
	if err != nil {
		return nil, err
	}
	return []Release{*rel}, nil
}

func (d *Direct) FetchRelease(ctx context.Context, ref, tag string) (*Release, error) {
	// Direct URLs have no tags; every fetch resolves the same artifact.
	return d.synthesize(ref)
}

func (d *Direct) Download(ctx context.Context, asset Asset, dest string) error {
	return d.client.DownloadFile(ctx, KindDirect, asset.DownloadURL, dest)
}

// Modified implements ConditionalSource via If-Modified-Since / ETag.
func (d *Direct) Modified(ctx context.Context, ref string, since time.Time, etag string) (bool, string, error) {
	return d.client.CheckModified(ctx, KindDirect, ref, since, etag)
}

// pathBase returns the final path element of a URL or slash path.
func pathBase(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	// Strip any query string that survived a raw URL.
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
