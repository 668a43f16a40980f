// Package config loads the measurecamp-ics YAML configuration.
//
// Every setting has a default, so a missing config file is not an error.
// Command-line flags override the loaded values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/measurecamp-ics/internal/calendar"
	"github.com/pfrederiksen/measurecamp-ics/internal/feed"
	"github.com/pfrederiksen/measurecamp-ics/internal/logger"
	"github.com/pfrederiksen/measurecamp-ics/internal/storage"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"

	// DefaultOutput is the calendar file written when none is configured.
	DefaultOutput = "measurecamp-events.ics"

	// DSNEnv supplies the Postgres DSN when the config leaves it empty.
	DSNEnv = "MEASURECAMP_DATABASE_URL"
)

// ISO 8601 durations as used by REFRESH-INTERVAL, e.g. P1D or PT12H.
var isoDuration = regexp.MustCompile(`^P(\d+W|(\d+D)?(T(\d+H)?(\d+M)?(\d+S)?)?)$`)

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend string `yaml:"backend"`
	// Path is the JSON store file for the file backend.
	Path string `yaml:"path"`
	// DSN is the connection string for the postgres backend.
	DSN string `yaml:"dsn,omitempty"`
}

// CalendarConfig controls the generated .ics file.
type CalendarConfig struct {
	Output          string        `yaml:"output"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	ProductID       string        `yaml:"product_id"`
	UIDDomain       string        `yaml:"uid_domain"`
	SummaryPrefix   string        `yaml:"summary_prefix"`
	RefreshInterval string        `yaml:"refresh_interval"`
	PublishedTTL    string        `yaml:"published_ttl"`
	Color           string        `yaml:"color,omitempty"`
	Categories      []string      `yaml:"categories,omitempty"`
	Duration        time.Duration `yaml:"duration"`
}

// FeedConfig controls the HTML feed.
type FeedConfig struct {
	ListingURL string        `yaml:"listing_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	Delay      time.Duration `yaml:"delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	// Textfile, when set, receives run metrics in Prometheus text format.
	Textfile string `yaml:"textfile,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Calendar CalendarConfig `yaml:"calendar"`
	Feed     FeedConfig     `yaml:"feed"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	cfg := &Config{Feed: FeedConfig{Delay: feed.DefaultDelay}}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values with defaults so partial files behave like the
// built-in configuration.
func (c *Config) Normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendFile
	}
	if c.Store.Path == "" {
		c.Store.Path = storage.DefaultPath
	}

	cal := &c.Calendar
	if cal.Output == "" {
		cal.Output = DefaultOutput
	}
	if cal.Name == "" {
		cal.Name = calendar.DefaultName
	}
	if cal.Description == "" {
		cal.Description = calendar.DefaultDescription
	}
	if cal.ProductID == "" {
		cal.ProductID = calendar.DefaultProductID
	}
	if cal.UIDDomain == "" {
		cal.UIDDomain = calendar.DefaultUIDDomain
	}
	if cal.SummaryPrefix == "" {
		cal.SummaryPrefix = calendar.DefaultSummaryPrefix
	}
	if cal.RefreshInterval == "" {
		cal.RefreshInterval = calendar.DefaultRefreshInterval
	}
	if cal.PublishedTTL == "" {
		cal.PublishedTTL = cal.RefreshInterval
	}
	if cal.Duration == 0 {
		cal.Duration = calendar.DefaultDuration
	}

	if c.Feed.ListingURL == "" {
		c.Feed.ListingURL = feed.DefaultListingURL
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = feed.UserAgent
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = feed.DefaultTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile:
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend (or set %s)", DSNEnv)
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendFile, BackendPostgres, c.Store.Backend)
	}

	if c.Calendar.Duration <= 0 {
		return fmt.Errorf("calendar.duration must be positive, got %s", c.Calendar.Duration)
	}
	if !isoDuration.MatchString(c.Calendar.RefreshInterval) || strings.HasSuffix(c.Calendar.RefreshInterval, "T") || c.Calendar.RefreshInterval == "P" {
		return fmt.Errorf("calendar.refresh_interval must be an ISO 8601 duration, got %q", c.Calendar.RefreshInterval)
	}
	if !isoDuration.MatchString(c.Calendar.PublishedTTL) || strings.HasSuffix(c.Calendar.PublishedTTL, "T") || c.Calendar.PublishedTTL == "P" {
		return fmt.Errorf("calendar.published_ttl must be an ISO 8601 duration, got %q", c.Calendar.PublishedTTL)
	}

	if c.Feed.Timeout < 0 {
		return fmt.Errorf("feed.timeout must not be negative, got %s", c.Feed.Timeout)
	}
	if c.Feed.Delay < 0 {
		return fmt.Errorf("feed.delay must not be negative, got %s", c.Feed.Delay)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if cfg.Store.DSN == "" {
		cfg.Store.DSN = os.Getenv(DSNEnv)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// CalendarOptions converts the calendar section into serializer options.
func (c *Config) CalendarOptions() calendar.Options {
	return calendar.Options{
		ProductID:       c.Calendar.ProductID,
		Name:            c.Calendar.Name,
		Description:     c.Calendar.Description,
		UIDDomain:       c.Calendar.UIDDomain,
		SummaryPrefix:   c.Calendar.SummaryPrefix,
		RefreshInterval: c.Calendar.RefreshInterval,
		PublishedTTL:    c.Calendar.PublishedTTL,
		Color:           c.Calendar.Color,
		Categories:      c.Calendar.Categories,
		Duration:        c.Calendar.Duration,
	}
}

// HTMLOptions converts the feed section into HTML feed options.
func (c *Config) HTMLOptions() feed.HTMLOptions {
	return feed.HTMLOptions{
		ListingURL: c.Feed.ListingURL,
		UserAgent:  c.Feed.UserAgent,
		Timeout:    c.Feed.Timeout,
		Delay:      c.Feed.Delay,
	}
}
