package dbbridge

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a db-bridge deployment:
// which dialect to render for, the cache coordinator's tuning knobs, and
// the defaults applied to transactions that don't specify their own
//.
type Config struct {
	Dialect DialectConfig `yaml:"dialect"`
	Cache   CacheConfig   `yaml:"cache"`
	Tx      TxConfig      `yaml:"transaction"`
}

// DialectConfig picks the rendering dialect and data source.
type DialectConfig struct {
	Name   string `yaml:"name"` // "mysql" or "postgres"
	Source string `yaml:"source"`
}

// CacheConfig mirrors cache.Config (package cache, not imported here to
// avoid a cycle: cache imports this module's root package for the Store
// interface) in YAML-friendly form. Durations are expressed as strings
// ("5m", "1h") since time.Duration doesn't round trip through yaml.v3
// without a custom type; call Durations to parse them, then assign the
// results into a cache.Config at the call site.
type CacheConfig struct {
	Prefix            string `yaml:"prefix"`
	DefaultTTL        string `yaml:"default_ttl"`
	MaxTTL            string `yaml:"max_ttl"`
	WarnOnLargeResult int    `yaml:"warn_on_large_result"`
	MaxCacheableRows  int    `yaml:"max_cacheable_rows"`
	CleanupInterval   string `yaml:"cleanup_interval"`
}

// CacheDurations holds the parsed form of CacheConfig's duration fields.
type CacheDurations struct {
	DefaultTTL      time.Duration
	MaxTTL          time.Duration
	CleanupInterval time.Duration
}

// Durations parses the string duration fields. Empty strings parse to
// zero, letting cache.Config apply its own defaults.
func (c CacheConfig) Durations() (CacheDurations, error) {
	var (
		d   CacheDurations
		err error
	)
	if d.DefaultTTL, err = parseDuration(c.DefaultTTL); err != nil {
		return CacheDurations{}, fmt.Errorf("dbbridge: cache.default_ttl: %w", err)
	}
	if d.MaxTTL, err = parseDuration(c.MaxTTL); err != nil {
		return CacheDurations{}, fmt.Errorf("dbbridge: cache.max_ttl: %w", err)
	}
	if d.CleanupInterval, err = parseDuration(c.CleanupInterval); err != nil {
		return CacheDurations{}, fmt.Errorf("dbbridge: cache.cleanup_interval: %w", err)
	}
	return d, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// TxConfig holds the default transaction settings: isolation level,
// read-only, and deferrable.
type TxConfig struct {
	Isolation  string `yaml:"isolation"` // "", "read_uncommitted", "read_committed", "repeatable_read", "serializable"
	ReadOnly   bool   `yaml:"read_only"`
	Deferrable bool   `yaml:"deferrable"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dbbridge: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("dbbridge: parse config: %w", err)
	}
	return &cfg, nil
}
