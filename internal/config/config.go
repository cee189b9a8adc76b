// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crawlview configuration.
type Config struct {
	Source   Source   `yaml:"source"`
	Viewport Viewport `yaml:"viewport"`
	Cache    Cache    `yaml:"cache"`
}

// Source selects where crawl data comes from. Endpoint takes priority;
// Database is used when Endpoint is empty.
type Source struct {
	Endpoint string        `yaml:"endpoint"` // crawl API base URL
	Database string        `yaml:"database"` // crawl database file
	Session  string        `yaml:"session"`  // session id sent to the API
	CrawlID  int64         `yaml:"crawl_id"` // 0 selects the latest crawl in the database
	Timeout  time.Duration `yaml:"timeout"`
}

// Viewport holds scroll geometry settings.
type Viewport struct {
	RowHeight  int `yaml:"row_height"`  // scroll units per row
	BufferRows int `yaml:"buffer_rows"` // rows fetched beyond each visible edge
}

// Cache holds batch residency settings.
type Cache struct {
	BatchSize          int `yaml:"batch_size"`
	MaxResidentBatches int `yaml:"max_resident_batches"`
	EvictMarginBatches int `yaml:"evict_margin_batches"` // batches around the window spared from eviction
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source: Source{
			Timeout: 15 * time.Second,
		},
		Viewport: Viewport{
			RowHeight:  1,
			BufferRows: 20,
		},
		Cache: Cache{
			BatchSize:          100,
			MaxResidentBatches: 64,
			EvictMarginBatches: 2,
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("config: source.timeout must be positive, got %v", c.Source.Timeout)
	}
	if c.Source.CrawlID < 0 {
		return fmt.Errorf("config: source.crawl_id must be non-negative, got %d", c.Source.CrawlID)
	}
	if c.Viewport.RowHeight <= 0 {
		return fmt.Errorf("config: viewport.row_height must be positive, got %d", c.Viewport.RowHeight)
	}
	if c.Viewport.BufferRows < 0 {
		return fmt.Errorf("config: viewport.buffer_rows must be non-negative, got %d", c.Viewport.BufferRows)
	}
	if c.Cache.BatchSize <= 0 {
		return fmt.Errorf("config: cache.batch_size must be positive, got %d", c.Cache.BatchSize)
	}
	if c.Cache.MaxResidentBatches <= 0 {
		return fmt.Errorf("config: cache.max_resident_batches must be positive, got %d", c.Cache.MaxResidentBatches)
	}
	if c.Cache.EvictMarginBatches < 0 {
		return fmt.Errorf("config: cache.evict_margin_batches must be non-negative, got %d", c.Cache.EvictMarginBatches)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: CRAWLVIEW_ENDPOINT, CRAWLVIEW_DATABASE,
// CRAWLVIEW_SESSION, CRAWLVIEW_CRAWL_ID, CRAWLVIEW_TIMEOUT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("CRAWLVIEW_ENDPOINT"); v != "" {
		c.Source.Endpoint = v
	}
	if v := os.Getenv("CRAWLVIEW_DATABASE"); v != "" {
		c.Source.Database = v
	}
	if v := os.Getenv("CRAWLVIEW_SESSION"); v != "" {
		c.Source.Session = v
	}
	if v := os.Getenv("CRAWLVIEW_CRAWL_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid CRAWLVIEW_CRAWL_ID %q: %w", v, err)
		}
		c.Source.CrawlID = id
	}
	if v := os.Getenv("CRAWLVIEW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid CRAWLVIEW_TIMEOUT %q: %w", v, err)
		}
		c.Source.Timeout = d
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Source   *rawSource   `yaml:"source"`
	Viewport *rawViewport `yaml:"viewport"`
	Cache    *rawCache    `yaml:"cache"`
}

type rawSource struct {
	Endpoint *string        `yaml:"endpoint"`
	Database *string        `yaml:"database"`
	Session  *string        `yaml:"session"`
	CrawlID  *int64         `yaml:"crawl_id"`
	Timeout  *time.Duration `yaml:"timeout"`
}

type rawViewport struct {
	RowHeight  *int `yaml:"row_height"`
	BufferRows *int `yaml:"buffer_rows"`
}

type rawCache struct {
	BatchSize          *int `yaml:"batch_size"`
	MaxResidentBatches *int `yaml:"max_resident_batches"`
	EvictMarginBatches *int `yaml:"evict_margin_batches"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Source != nil {
		if layer.Source.Endpoint != nil {
			c.Source.Endpoint = *layer.Source.Endpoint
		}
		if layer.Source.Database != nil {
			c.Source.Database = *layer.Source.Database
		}
		if layer.Source.Session != nil {
			c.Source.Session = *layer.Source.Session
		}
		if layer.Source.CrawlID != nil {
			c.Source.CrawlID = *layer.Source.CrawlID
		}
		if layer.Source.Timeout != nil {
			c.Source.Timeout = *layer.Source.Timeout
		}
	}
	if layer.Viewport != nil {
		if layer.Viewport.RowHeight != nil {
			c.Viewport.RowHeight = *layer.Viewport.RowHeight
		}
		if layer.Viewport.BufferRows != nil {
			c.Viewport.BufferRows = *layer.Viewport.BufferRows
		}
	}
	if layer.Cache != nil {
		if layer.Cache.BatchSize != nil {
			c.Cache.BatchSize = *layer.Cache.BatchSize
		}
		if layer.Cache.MaxResidentBatches != nil {
			c.Cache.MaxResidentBatches = *layer.Cache.MaxResidentBatches
		}
		if layer.Cache.EvictMarginBatches != nil {
			c.Cache.EvictMarginBatches = *layer.Cache.EvictMarginBatches
		}
	}
}
