// Package fetcher downloads review pages concurrently and joins the parsed
// results by URL.
package fetcher

import (
	"context"
	"time"
)

// Page is the raw result of one HTTP GET.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Getter performs a single fetch attempt.
type Getter interface {
	Get(ctx context.Context, rawURL string) (Page, error)
}

// RetryPolicy decides whether and when a failed attempt is repeated.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Limiter gates attempts per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}
