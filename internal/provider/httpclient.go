package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultUserAgent = "upstream/1.0"

// Client is the HTTP layer shared by every provider variant. Transient
// failures are retried with exponential backoff up to a bounded attempt
// count; every request carries a deadline so nothing hangs indefinitely.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries uint64
	tokens     map[Kind]string
	progress   func(total int64, description string) Progress
}

// Progress observes a download as it streams.
type Progress interface {
	Add(n int64)
	Finish()
}

// NewClient builds a client with the given per-request timeout and retry
// budget for transient failures.
func NewClient(timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		userAgent:  defaultUserAgent,
		maxRetries: uint64(retries),
		tokens:     make(map[Kind]string),
	}
}

// SetToken registers an API token used for requests to the given provider.
func (c *Client) SetToken(kind Kind, token string) {
	if token != "" {
		c.tokens[kind] = token
	}
}

// SetProgress installs a factory invoked once per download attempt to
// render transfer progress. A nil factory disables reporting.
func (c *Client) SetProgress(f func(total int64, description string) Progress) {
	c.progress = f
}

// progressWriter feeds byte counts from an io.TeeReader into a Progress.
type progressWriter struct {
	p Progress
}

func (w progressWriter) Write(b []byte) (int, error) {
	w.p.Add(int64(len(b)))
	return len(b), nil
}

// retry runs op with exponential backoff, retrying only transient
// network failures.
func (c *Client) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (c *Client) newRequest(ctx context.Context, kind Kind, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if tok, ok := c.tokens[kind]; ok {
		switch kind {
		case KindGitLab:
			req.Header.Set("PRIVATE-TOKEN", tok)
		default:
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// classify turns a non-2xx response into the matching failure kind.
// The response body is closed.
func classify(resp *http.Response, url string) error {
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Ref: url}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		var after time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				after = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{Ref: url, RetryAfter: after}
	case resp.StatusCode >= 500:
		return &NetworkError{Op: "GET", URL: url, Err: fmt.Errorf("server returned %s", resp.Status)}
	default:
		return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
}

// GetJSON fetches url and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, kind Kind, url string, v any) error {
	return c.retry(ctx, func() error {
		req, err := c.newRequest(ctx, kind, http.MethodGet, url)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return &NetworkError{Op: "GET", URL: url, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			return classify(resp, url)
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
		return nil
	})
}

// GetBody fetches url and returns the full response body.
func (c *Client) GetBody(ctx context.Context, kind Kind, url string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		req, err := c.newRequest(ctx, kind, http.MethodGet, url)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return &NetworkError{Op: "GET", URL: url, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			return classify(resp, url)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Op: "GET", URL: url, Err: err}
		}
		return nil
	})
	return body, err
}

// DownloadFile streams url into dest. The download goes through a .part
// file in the same directory so a torn transfer never leaves a plausible
// looking artifact behind.
func (c *Client) DownloadFile(ctx context.Context, kind Kind, url, dest string) error {
	return c.retry(ctx, func() error {
		req, err := c.newRequest(ctx, kind, http.MethodGet, url)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return &NetworkError{Op: "GET", URL: url, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			return classify(resp, url)
		}
		defer resp.Body.Close()

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create download directory: %w", err)
		}

		part := dest + ".part"
		f, err := os.Create(part)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", part, err)
		}
		body := io.Reader(resp.Body)
		if c.progress != nil {
			prog := c.progress(resp.ContentLength, "fetching "+filepath.Base(dest))
			defer prog.Finish()
			body = io.TeeReader(resp.Body, progressWriter{prog})
		}
		if _, err := io.Copy(f, body); err != nil {
			f.Close()
			os.Remove(part)
			return &NetworkError{Op: "GET", URL: url, Err: err}
		}
		if err := f.Close(); err != nil {
			os.Remove(part)
			return fmt.Errorf("failed to finish writing %s: %w", part, err)
		}
		if err := os.Rename(part, dest); err != nil {
			os.Remove(part)
			return fmt.Errorf("failed to move download into place: %w", err)
		}
		return nil
	})
}

// CheckModified issues a conditional GET against url. It returns whether
// the resource changed since the given time/etag, along with the new ETag
// when the server sent one.
func (c *Client) CheckModified(ctx context.Context, kind Kind, url string, since time.Time, etag string) (bool, string, error) {
	modified := true
	newETag := ""
	err := c.retry(ctx, func() error {
		req, err := c.newRequest(ctx, kind, http.MethodGet, url)
		if err != nil {
			return err
		}
		if !since.IsZero() {
			req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
		}
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &NetworkError{Op: "GET", URL: url, Err: err}
		}
		defer resp.Body.Close()
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)

		switch resp.StatusCode {
		case http.StatusNotModified:
			modified = false
			return nil
		case http.StatusOK:
			modified = true
			newETag = resp.Header.Get("ETag")
			return nil
		case http.StatusNotFound:
			return &NotFoundError{Ref: url}
		default:
			if resp.StatusCode >= 500 {
				return &NetworkError{Op: "GET", URL: url, Err: fmt.Errorf("server returned %s", resp.Status)}
			}
			return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
		}
	})
	return modified, newETag, err
}
