package provider

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient() *Client {
	return NewClient(5*time.Second, 0)
}

func TestGitHubListReleases_NullFieldsDefaulted(t *testing.T) {
	// name and content_type are explicit nulls; size is missing entirely.
	// The release must still come through with defaults, not an error.
	payload := `[
		{
			"tag_name": "v1.2.0",
			"name": null,
			"draft": false,
			"prerelease": false,
			"published_at": "2024-03-01T10:00:00Z",
			"assets": [
				{"name": null, "browser_download_url": "https://dl.example.com/tool-linux-amd64.tar.gz", "content_type": null},
				{"name": "no-url.tar.gz", "browser_download_url": null}
			]
		}
	]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/tool/releases" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	gh := NewGitHub(newTestClient(), srv.URL)
	releases, err := gh.ListReleases(context.Background(), "acme/tool")
	if err != nil {
		t.Fatalf("ListReleases() error: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("got %d releases, want 1", len(releases))
	}

	rel := releases[0]
	if rel.Tag != "v1.2.0" {
		t.Errorf("Tag = %q, want v1.2.0", rel.Tag)
	}
	if rel.Name != "v1.2.0" {
		t.Errorf("Name = %q, want defaulted to tag", rel.Name)
	}
	// The null-name asset gets its name from the URL; the URL-less asset
	// is dropped because there is nothing to download.
	if len(rel.Assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(rel.Assets))
	}
	if rel.Assets[0].Name != "tool-linux-amd64.tar.gz" {
		t.Errorf("asset name = %q, want derived from URL", rel.Assets[0].Name)
	}
}

func TestGitHubListReleases_SkipsDrafts(t *testing.T) {
	payload := `[
		{"tag_name": "v2.0.0-draft", "draft": true, "assets": []},
		{"tag_name": "v1.0.0", "draft": false, "assets": []}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	gh := NewGitHub(newTestClient(), srv.URL)
	releases, err := gh.ListReleases(context.Background(), "acme/tool")
	if err != nil {
		t.Fatalf("ListReleases() error: %v", err)
	}
	if len(releases) != 1 || releases[0].Tag != "v1.0.0" {
		t.Errorf("releases = %+v, want only v1.0.0", releases)
	}
}

func TestGitHubNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	gh := NewGitHub(newTestClient(), srv.URL)
	_, err := gh.ListReleases(context.Background(), "acme/missing")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestGitHubRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gh := NewGitHub(newTestClient(), srv.URL)
	_, err := gh.ListReleases(context.Background(), "acme/tool")

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
	if rl.RetryAfter != 42*time.Second {
		t.Errorf("RetryAfter = %s, want 42s", rl.RetryAfter)
	}
}

func TestGitHubServerErrorIsRetryable(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	gh := NewGitHub(NewClient(5*time.Second, 2), srv.URL)
	_, err := gh.ListReleases(context.Background(), "acme/tool")
	if err != nil {
		t.Fatalf("ListReleases() after retry error: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 (one retry)", calls)
	}
}

func TestOnChannel(t *testing.T) {
	tests := []struct {
		name    string
		rel     Release
		channel Channel
		want    bool
	}{
		{"stable release on stable", Release{Tag: "v1.0.0"}, ChannelStable, true},
		{"prerelease on stable", Release{Tag: "v1.0.0-rc1", Prerelease: true}, ChannelStable, false},
		{"prerelease on nightly", Release{Tag: "v1.0.0-rc1", Prerelease: true}, ChannelNightly, true},
		{"nightly tag on nightly", Release{Tag: "nightly-2024-03-01"}, ChannelNightly, true},
		{"nightly tag on stable", Release{Tag: "canary-123"}, ChannelStable, false},
		{"draft never eligible", Release{Tag: "v9.9.9", Draft: true}, ChannelStable, false},
	}
	for _, tt := range tests {
		if got := OnChannel(tt.rel, tt.channel); got != tt.want {
			t.Errorf("%s: OnChannel() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLatestPicksHighestVersionOnChannel(t *testing.T) {
	src := &fakeSource{releases: []Release{
		{Tag: "v1.1.0", Versioned: true},
		{Tag: "v2.0.0-rc1", Prerelease: true, Versioned: true},
		{Tag: "v1.10.0", Versioned: true},
		{Tag: "v1.2.0", Versioned: true},
	}}

	rel, err := Latest(context.Background(), src, "acme/tool", ChannelStable)
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if rel.Tag != "v1.10.0" {
		t.Errorf("Latest() tag = %q, want v1.10.0 (semantic, not lexicographic)", rel.Tag)
	}

	rel, err = Latest(context.Background(), src, "acme/tool", ChannelNightly)
	if err != nil {
		t.Fatalf("Latest(nightly) error: %v", err)
	}
	if rel.Tag != "v2.0.0-rc1" {
		t.Errorf("Latest(nightly) tag = %q, want v2.0.0-rc1", rel.Tag)
	}
}

type recordedProgress struct {
	total    int64
	added    int64
	finished bool
}

func (r *recordedProgress) Add(n int64) { r.added += n }
func (r *recordedProgress) Finish()     { r.finished = true }

func TestDownloadFileReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	var rec *recordedProgress
	c := newTestClient()
	c.SetProgress(func(total int64, description string) Progress {
		rec = &recordedProgress{total: total}
		return rec
	})

	dest := filepath.Join(t.TempDir(), "tool.tar.gz")
	if err := c.DownloadFile(context.Background(), KindGitHub, srv.URL+"/tool.tar.gz", dest); err != nil {
		t.Fatalf("DownloadFile() error: %v", err)
	}

	if rec == nil {
		t.Fatal("progress factory never invoked")
	}
	if rec.added != int64(len(payload)) {
		t.Errorf("progress saw %d bytes, want %d", rec.added, len(payload))
	}
	if !rec.finished {
		t.Error("progress never finished")
	}
	if data, err := os.ReadFile(dest); err != nil || !bytes.Equal(data, payload) {
		t.Errorf("downloaded file = %d bytes, %v", len(data), err)
	}
}

// fakeSource serves canned releases for tests in this package.
type fakeSource struct {
	releases []Release
}

func (f *fakeSource) Kind() Kind { return KindGitHub }

func (f *fakeSource) ListReleases(ctx context.Context, ref string) ([]Release, error) {
	return f.releases, nil
}

func (f *fakeSource) FetchRelease(ctx context.Context, ref, tag string) (*Release, error) {
	for i := range f.releases {
		if f.releases[i].Tag == tag {
			return &f.releases[i], nil
		}
	}
	return nil, &NotFoundError{Ref: ref, Detail: "tag " + tag}
}

func (f *fakeSource) Download(ctx context.Context, asset Asset, dest string) error {
	return nil
}
