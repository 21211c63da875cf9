// Package pipeline runs one conversion: fetch every configured page, extract
// the records in configuration order, build the KML document and write it.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tabelog2kml/internal/extract"
	"github.com/JakeFAU/tabelog2kml/internal/hash/sha256"
	"github.com/JakeFAU/tabelog2kml/internal/kml"
	"github.com/JakeFAU/tabelog2kml/internal/markup"
	"github.com/JakeFAU/tabelog2kml/internal/metrics"
	"github.com/JakeFAU/tabelog2kml/internal/restaurant"
	"github.com/JakeFAU/tabelog2kml/internal/storage"
)

// ErrMissingPage reports a configured URL the fetcher returned no page for.
var ErrMissingPage = errors.New("page missing from fetch results")

// PageFetcher downloads and parses a set of pages.
type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string) (map[string]markup.Node, error)
}

// Entry is one configured page with its overrides.
type Entry struct {
	URL       string
	Overrides restaurant.Overrides
}

// Job describes one document to produce.
type Job struct {
	Meta    kml.Meta
	Entries []Entry
	// Object is the name the document is stored under.
	Object string
}

// Result summarizes a finished run.
type Result struct {
	URI        string
	Placemarks int
	Bytes      int
	SHA256     string
	Duration   time.Duration
}

// Runner wires the stages of a conversion together.
type Runner struct {
	fetcher   PageFetcher
	extractor extract.Extractor
	styles    *kml.StyleRegistry
	store     storage.BlobStore
	logger    *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(
	fetcher PageFetcher,
	extractor extract.Extractor,
	styles *kml.StyleRegistry,
	store storage.BlobStore,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		fetcher:   fetcher,
		extractor: extractor,
		styles:    styles,
		store:     store,
		logger:    logger,
	}
}

// Run executes job. Nothing is written unless every page was fetched and
// extracted.
func (r *Runner) Run(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	res, err := r.run(ctx, job)
	res.Duration = time.Since(start)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailed
	}
	metrics.ObserveRun(status, res.Duration)
	return res, err
}

func (r *Runner) run(ctx context.Context, job Job) (Result, error) {
	urls := make([]string, 0, len(job.Entries))
	for _, e := range job.Entries {
		urls = append(urls, e.URL)
	}

	r.logger.Info("fetching pages", zap.Int("count", len(urls)))
	pages, err := r.fetcher.FetchAll(ctx, urls)
	if err != nil {
		return Result{}, fmt.Errorf("fetch pages: %w", err)
	}

	records, err := r.Assemble(job.Entries, pages)
	if err != nil {
		return Result{}, err
	}

	doc, err := kml.Build(job.Meta, records, r.styles)
	if err != nil {
		return Result{}, fmt.Errorf("build document: %w", err)
	}
	var buf bytes.Buffer
	if err := kml.Encode(&buf, doc); err != nil {
		return Result{}, fmt.Errorf("encode document: %w", err)
	}
	size := buf.Len()
	digest := sha256.Digest(buf.Bytes())

	uri, err := r.store.PutObject(ctx, job.Object, storage.ContentTypeKML, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("write document: %w", err)
	}
	metrics.ObservePlacemarks(len(records))
	r.logger.Info("document written",
		zap.String("uri", uri),
		zap.Int("placemarks", len(records)),
		zap.Int("bytes", size),
		zap.String("sha256", digest),
	)
	return Result{URI: uri, Placemarks: len(records), Bytes: size, SHA256: digest}, nil
}

// Assemble extracts one record per entry, in entry order, from the fetched
// pages. The first extraction failure aborts assembly.
func (r *Runner) Assemble(entries []Entry, pages map[string]markup.Node) ([]restaurant.Restaurant, error) {
	records := make([]restaurant.Restaurant, 0, len(entries))
	for _, e := range entries {
		page, ok := pages[e.URL]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPage, e.URL)
		}
		rec, err := r.extractor.Extract(page, e.Overrides)
		if err != nil {
			r.logger.Error("extract failed", zap.String("url", e.URL), zap.Error(err))
			return nil, fmt.Errorf("extract %s: %w", e.URL, err)
		}
		r.logger.Debug("record extracted",
			zap.String("url", e.URL),
			zap.String("name", rec.Name),
			zap.Int("categories", len(rec.Categories)),
			zap.Int("thumbnails", len(rec.Thumbnails)),
		)
		records = append(records, rec)
	}
	return records, nil
}
