package provider

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError means the repository, release, or page does not exist.
type NotFoundError struct {
	Ref    string
	Detail string
}

func (e *NotFoundError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Ref, e.Detail)
	}
	return fmt.Sprintf("%s: not found", e.Ref)
}

// RateLimitError means the provider rejected the request due to rate
// limiting. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	Ref        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Ref, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Ref)
}

// NetworkError wraps a transport failure that is worth retrying.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient network failure.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
