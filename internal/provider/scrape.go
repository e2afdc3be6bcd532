package provider

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// scrapeExtensions is the allow-list of download-looking link suffixes the
// scraping variant extracts from a listing page.
var scrapeExtensions = []string{
	".appimage", ".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.bz2", ".tbz2",
	".tar", ".zip", ".gz", ".xz", ".bz2", ".exe", ".bin",
	".sha256", ".sha512", ".minisig", ".asc", ".sum", ".txt",
}

// Scraper extracts candidate download links from an HTML listing page.
// Like the direct variant it produces releases without version metadata,
// so upgrade checks degrade to conditional requests on the page itself.
type Scraper struct {
	client *Client
}

// NewScraper builds a page-scraping source.
func NewScraper(client *Client) *Scraper {
	return &Scraper{client: client}
}

func (s *Scraper) Kind() Kind { return KindScrape }

func (s *Scraper) ListReleases(ctx context.Context, ref string) ([]Release, error) {
	base, err := url.Parse(ref)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &NotFoundError{Ref: ref, Detail: "not a valid page URL"}
	}

	body, err := s.client.GetBody(ctx, KindScrape, ref)
	if err != nil {
		return nil, err
	}

	assets := ExtractDownloadLinks(body, base)
	if len(assets) == 0 {
		return nil, &NotFoundError{Ref: ref, Detail: "no download links found on page"}
	}

	return []Release{{
		Name:      base.Host + base.Path,
		Versioned: false,
		Assets:    assets,
	}}, nil
}

func (s *Scraper) FetchRelease(ctx context.Context, ref, tag string) (*Release, error) {
	releases, err := s.ListReleases(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &releases[0], nil
}

func (s *Scraper) Download(ctx context.Context, asset Asset, dest string) error {
	return s.client.DownloadFile(ctx, KindScrape, asset.DownloadURL, dest)
}

// Modified implements ConditionalSource against the listing page.
func (s *Scraper) Modified(ctx context.Context, ref string, since time.Time, etag string) (bool, string, error) {
	return s.client.CheckModified(ctx, KindScrape, ref, since, etag)
}

// ExtractDownloadLinks walks an HTML document and collects anchor targets
// whose filename matches the download extension allow-list. Relative links
// are resolved against base. Duplicate targets are dropped, first wins, so
// extraction order is the document order and therefore deterministic.
func ExtractDownloadLinks(page []byte, base *url.URL) []Asset {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		// Malformed markup is defaulted to "no links", not an error.
		return nil
	}

	var assets []Asset
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				target, err := base.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				name := pathBase(target.Path)
				if name == "" || !hasDownloadExtension(name) {
					continue
				}
				abs := target.String()
				if seen[abs] {
					continue
				}
				seen[abs] = true
				assets = append(assets, Asset{Name: name, DownloadURL: abs})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return assets
}

func hasDownloadExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range scrapeExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
