// Package config loads trgscout's configuration with the same precedence the
// teacher uses: built-in defaults, then an optional YAML file, then
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure. It is read-only after Load
// returns and safe for concurrent reads.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sitemap  SitemapConfig  `yaml:"sitemap"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Tunnel   TunnelConfig   `yaml:"tunnel"`
	Browser  BrowserConfig  `yaml:"browser"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig points at the embedded relational store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SitemapConfig describes the root sitemap index and freshness policy.
type SitemapConfig struct {
	IndexURL       string   `yaml:"index_url"`
	StalenessAfter Duration `yaml:"staleness_after"`
}

// ScrapeConfig controls C7's per-store walk.
type ScrapeConfig struct {
	BaseURL          string `yaml:"base_url"`
	TargetCategoryID int    `yaml:"target_category_id"`
	MaxPages         int    `yaml:"max_pages"`
	PerPageCap       int    `yaml:"per_page_cap"`
}

// TunnelConfig points at the tunnel enumeration file used by C4.
type TunnelConfig struct {
	ConfigPath string `yaml:"config_path"`
}

// BrowserConfig configures C5's driver construction.
type BrowserConfig struct {
	DisplayNum string   `yaml:"display_num"`
	NavTimeout Duration `yaml:"nav_timeout"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration so it can be written as "7d" / "30s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// parseDuration extends time.ParseDuration with a "d" (day) unit, since
// staleness windows are naturally expressed in days.
func parseDuration(s string) (time.Duration, error) {
	if n := len(s); n > 1 && s[n-1] == 'd' {
		days, err := strconv.Atoi(s[:n-1])
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// Load loads configuration with precedence: defaults -> YAML file -> env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("TRGSCOUT_CONFIG_PATH", "config/trgscout.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config populated with the spec's documented defaults.
func newDefaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/trgscout.db",
		},
		Sitemap: SitemapConfig{
			StalenessAfter: Duration(7 * 24 * time.Hour),
		},
		Scrape: ScrapeConfig{
			MaxPages:   20,
			PerPageCap: 100,
		},
		Browser: BrowserConfig{
			NavTimeout: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists. A missing
// file is not an error; defaults and env vars still apply.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the environment variables named in spec §6.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SITEMAP_INDEX_URL"); v != "" {
		cfg.Sitemap.IndexURL = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Scrape.BaseURL = v
	}
	if v := os.Getenv("TARGET_CATEGORY_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scrape.TargetCategoryID = n
		}
	}
	if v := os.Getenv("DISPLAY_NUM"); v != "" {
		cfg.Browser.DisplayNum = v
	}
	if v := os.Getenv("TRGSCOUT_TUNNEL_CONFIG"); v != "" {
		cfg.Tunnel.ConfigPath = v
	}
	if v := os.Getenv("TRGSCOUT_STALENESS_AFTER"); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.Sitemap.StalenessAfter = Duration(d)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// validate checks that the configuration has what the run entry point needs.
func (c *Config) validate() error {
	if c.Sitemap.IndexURL == "" {
		return fmt.Errorf("SITEMAP_INDEX_URL (or sitemap.index_url) is required")
	}
	if c.Scrape.BaseURL == "" {
		return fmt.Errorf("BASE_URL (or scrape.base_url) is required")
	}
	if c.Scrape.TargetCategoryID == 0 {
		return fmt.Errorf("TARGET_CATEGORY_ID (or scrape.target_category_id) is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
