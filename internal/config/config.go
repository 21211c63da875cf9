// Package config loads and validates run configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/tabelog2kml/internal/extract"
	"github.com/JakeFAU/tabelog2kml/internal/restaurant"
)

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Name        string            `mapstructure:"name"`
	Description string            `mapstructure:"description"`
	Variant     string            `mapstructure:"variant"`
	Categories  string            `mapstructure:"categories"`
	Output      string            `mapstructure:"output"`
	Restaurants []RestaurantEntry `mapstructure:"restaurants"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// RestaurantEntry is one configured review page plus optional overrides.
type RestaurantEntry struct {
	URL     string  `mapstructure:"url"`
	Comment *string `mapstructure:"comment"`
	Icon    *string `mapstructure:"icon"`
	Color   *string `mapstructure:"color"`
}

// Overrides converts the entry's optional fields.
func (e RestaurantEntry) Overrides() restaurant.Overrides {
	return restaurant.Overrides{Comment: e.Comment, Icon: e.Icon, Color: e.Color}
}

// FetchConfig governs the page fetcher.
type FetchConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffStep time.Duration `mapstructure:"backoff_step"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
	RatePerHost float64       `mapstructure:"rate_per_host"`
}

// LoggingConfig toggles zap development features and the optional log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
}

// MetricsConfig names the node-exporter textfile written after a run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TABELOG2KML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "")
	v.SetDefault("description", "")
	v.SetDefault("variant", extract.VariantStandard)
	v.SetDefault("categories", "category.csv")
	v.SetDefault("output", "example.kml")
	v.SetDefault("fetch.concurrency", 8)
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.user_agent", "tabelog2kml/0.1")
	v.SetDefault("fetch.max_attempts", 10)
	v.SetDefault("fetch.backoff_step", 500*time.Millisecond)
	v.SetDefault("fetch.backoff_max", 20*time.Second)
	v.SetDefault("fetch.rate_per_host", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Restaurants) == 0 {
		return errors.New("restaurants must list at least one page")
	}
	for i, r := range c.Restaurants {
		if strings.TrimSpace(r.URL) == "" {
			return fmt.Errorf("restaurants[%d].url must be set", i)
		}
	}
	switch c.Variant {
	case extract.VariantStandard, extract.VariantCompact:
	default:
		return fmt.Errorf("variant must be %q or %q, got %q", extract.VariantStandard, extract.VariantCompact, c.Variant)
	}
	if c.Output == "" {
		return errors.New("output must be set")
	}
	if c.Fetch.Concurrency <= 0 {
		return errors.New("fetch.concurrency must be > 0")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return errors.New("fetch.max_attempts must be > 0")
	}
	if c.Fetch.BackoffStep <= 0 {
		return errors.New("fetch.backoff_step must be > 0")
	}
	if c.Fetch.BackoffMax < c.Fetch.BackoffStep {
		return errors.New("fetch.backoff_max must be >= fetch.backoff_step")
	}
	if c.Fetch.RatePerHost < 0 {
		return errors.New("fetch.rate_per_host must be >= 0")
	}
	return nil
}

// URLs returns the configured page URLs in file order.
func (c Config) URLs() []string {
	urls := make([]string, 0, len(c.Restaurants))
	for _, r := range c.Restaurants {
		urls = append(urls, r.URL)
	}
	return urls
}
