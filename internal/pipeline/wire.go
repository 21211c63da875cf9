package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/tabelog2kml/internal/category"
	"github.com/JakeFAU/tabelog2kml/internal/config"
	"github.com/JakeFAU/tabelog2kml/internal/extract"
	"github.com/JakeFAU/tabelog2kml/internal/fetcher"
	collyfetcher "github.com/JakeFAU/tabelog2kml/internal/fetcher/colly"
	"github.com/JakeFAU/tabelog2kml/internal/kml"
	"github.com/JakeFAU/tabelog2kml/internal/policy/ratelimit"
	"github.com/JakeFAU/tabelog2kml/internal/storage"
)

// StylesForVariant returns the style mode a variant renders with: the full
// palette for standard pages and one fixed style for compact pages.
func StylesForVariant(variant string, palette kml.Palette) (*kml.StyleRegistry, error) {
	switch variant {
	case extract.VariantStandard:
		return kml.CartesianStyles(palette), nil
	case extract.VariantCompact:
		return kml.SingleStyle(palette, kml.DefaultKey, kml.DefaultKey), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}

// JobFromConfig converts the configured restaurants into a Job.
func JobFromConfig(cfg config.Config, object string) Job {
	entries := make([]Entry, 0, len(cfg.Restaurants))
	for _, r := range cfg.Restaurants {
		entries = append(entries, Entry{URL: r.URL, Overrides: r.Overrides()})
	}
	return Job{
		Meta:    kml.Meta{Name: cfg.Name, Description: cfg.Description},
		Entries: entries,
		Object:  object,
	}
}

// NewFetcher builds the colly backed worker pool described by cfg.
func NewFetcher(cfg config.FetchConfig, logger *zap.Logger) *fetcher.Pool {
	getter := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	var limiter fetcher.Limiter
	if cfg.RatePerHost > 0 {
		limiter = ratelimit.New(ratelimit.Config{DefaultRPS: cfg.RatePerHost, DefaultBurst: 1})
	}
	retry := fetcher.NewLinearRetryPolicy(cfg.MaxAttempts, cfg.BackoffStep, cfg.BackoffMax)
	return fetcher.NewPool(getter, retry, limiter, cfg.Concurrency, logger)
}

// Options overrides parts of the wiring FromConfig would otherwise derive.
type Options struct {
	// Store replaces the sink chosen from the output setting.
	Store storage.BlobStore
	// Fetcher replaces the colly worker pool.
	Fetcher PageFetcher
}

// FromConfig wires a Runner and its Job from a loaded configuration. The
// returned close function releases the output client.
func FromConfig(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*Runner, Job, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	categories, err := category.Load(cfg.Categories)
	if err != nil {
		return nil, Job{}, nil, fmt.Errorf("load categories: %w", err)
	}
	logger.Debug("categories loaded", zap.String("path", cfg.Categories), zap.Int("count", categories.Len()))

	extractor, err := extract.ForVariant(cfg.Variant, categories)
	if err != nil {
		return nil, Job{}, nil, err
	}
	palette := kml.DefaultPalette()
	if err := palette.Validate(); err != nil {
		return nil, Job{}, nil, fmt.Errorf("palette: %w", err)
	}
	styles, err := StylesForVariant(cfg.Variant, palette)
	if err != nil {
		return nil, Job{}, nil, err
	}

	target, err := storage.ParseTarget(cfg.Output)
	if err != nil {
		return nil, Job{}, nil, fmt.Errorf("parse output: %w", err)
	}
	store, closeFn := opts.Store, func() error { return nil }
	if store == nil {
		store, closeFn, err = storage.Open(ctx, target)
		if err != nil {
			return nil, Job{}, nil, err
		}
	}

	pageFetcher := opts.Fetcher
	if pageFetcher == nil {
		pageFetcher = NewFetcher(cfg.Fetch, logger)
	}

	runner := NewRunner(pageFetcher, extractor, styles, store, logger)
	return runner, JobFromConfig(cfg, target.Object), closeFn, nil
}
