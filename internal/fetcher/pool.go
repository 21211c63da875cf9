package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tabelog2kml/internal/markup"
	"github.com/JakeFAU/tabelog2kml/internal/metrics"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 8

// Pool fetches a URL set with a fixed number of workers.
type Pool struct {
	getter      Getter
	retry       RetryPolicy
	limiter     Limiter
	concurrency int
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewPool builds a Pool. limiter may be nil.
func NewPool(getter Getter, retry RetryPolicy, limiter Limiter, concurrency int, logger *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		getter:      getter,
		retry:       retry,
		limiter:     limiter,
		concurrency: concurrency,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// FetchAll fetches every distinct URL and returns the parsed pages keyed by
// the URL as given. It returns only after every worker has finished; the
// first failure cancels the remaining work and is returned.
func (p *Pool) FetchAll(ctx context.Context, urls []string) (map[string]markup.Node, error) {
	unique := dedupe(urls)
	total := len(unique)
	results := make(map[string]markup.Node, total)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, rawURL := range unique {
		g.Go(func() error {
			node, page, err := p.fetchOne(gctx, rawURL)
			if err != nil {
				return err
			}
			mu.Lock()
			results[rawURL] = node
			done := len(results)
			mu.Unlock()
			fields := []zap.Field{
				zap.String("url", rawURL),
				zap.Int("status", page.StatusCode),
				zap.Duration("duration", page.Duration),
				zap.Int("done", done),
				zap.Int("total", total),
			}
			if page.FinalURL != "" && page.FinalURL != rawURL {
				fields = append(fields, zap.String("final_url", page.FinalURL))
			}
			p.logger.Info("page fetched", fields...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pool) fetchOne(ctx context.Context, rawURL string) (markup.Node, Page, error) {
	site := metrics.SanitizeSite(rawURL)
	for attempt := 1; ; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx, rawURL); err != nil {
				return nil, Page{}, fmt.Errorf("wait for %s: %w", rawURL, err)
			}
		}

		start := time.Now()
		page, err := p.getter.Get(ctx, rawURL)
		metrics.ObserveFetchDuration(site, time.Since(start))
		if err == nil {
			metrics.ObserveFetch(site, metrics.StatusSuccess, len(page.Body))
			node, parseErr := parsePage(page)
			if parseErr != nil {
				return nil, Page{}, &FetchError{URL: rawURL, Attempts: attempt, Err: parseErr}
			}
			return node, page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, Page{}, fmt.Errorf("fetch %s: %w", rawURL, ctxErr)
		}
		if p.retry == nil || !p.retry.ShouldRetry(err, attempt) {
			metrics.ObserveFetch(site, metrics.StatusFailed, 0)
			p.logger.Error("fetch failed",
				zap.String("url", rawURL),
				zap.Int("attempts", attempt),
				zap.Bool("transient", IsTransient(err)),
				zap.Error(err),
			)
			return nil, Page{}, &FetchError{URL: rawURL, Attempts: attempt, Err: err}
		}

		wait := p.retry.Backoff(attempt)
		metrics.ObserveRetry(site)
		p.logger.Warn("transient fetch error; retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := p.sleep(ctx, wait); err != nil {
			return nil, Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
	}
}

// parsePage decodes the body to UTF-8 using the Content-Type charset or,
// failing that, the document's meta tags.
func parsePage(page Page) (markup.Node, error) {
	r, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", page.URL, err)
	}
	node, err := markup.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.URL, err)
	}
	return node, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
