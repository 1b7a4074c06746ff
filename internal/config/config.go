package config

import (
	"time"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for NutriGoat.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"`
	Site      SiteConfig      `mapstructure:"site"      yaml:"site"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port        int           `mapstructure:"port"         yaml:"port"`
	CancelGrace time.Duration `mapstructure:"cancel_grace" yaml:"cancel_grace"`
}

// SiteConfig describes the target store.
type SiteConfig struct {
	BaseURL           string              `mapstructure:"base_url"            yaml:"base_url"`
	ProductPathMarker string              `mapstructure:"product_path_marker" yaml:"product_path_marker"`
	Categories        []types.CategoryRef `mapstructure:"categories"          yaml:"categories"`
}

// CollectorConfig tunes discovery and extraction.
type CollectorConfig struct {
	SettleDelay          time.Duration `mapstructure:"settle_delay"           yaml:"settle_delay"`
	ScrollDelay          time.Duration `mapstructure:"scroll_delay"           yaml:"scroll_delay"`
	ScrollStallThreshold int           `mapstructure:"scroll_stall_threshold" yaml:"scroll_stall_threshold"`
	PageStallThreshold   int           `mapstructure:"page_stall_threshold"   yaml:"page_stall_threshold"`
	Full                 LimitsConfig  `mapstructure:"full"                   yaml:"full"`
	TestMode             LimitsConfig  `mapstructure:"test_mode"              yaml:"test_mode"`
}

// LimitsConfig bounds one collection mode. Zero means unbounded.
type LimitsConfig struct {
	MaxPages       int `mapstructure:"max_pages"         yaml:"max_pages"`
	MaxURLsPerPage int `mapstructure:"max_urls_per_page" yaml:"max_urls_per_page"`
	MaxScrollSteps int `mapstructure:"max_scroll_steps"  yaml:"max_scroll_steps"`
	MaxTotalURLs   int `mapstructure:"max_total_urls"    yaml:"max_total_urls"`
}

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"            yaml:"headless"`
	Stealth           bool          `mapstructure:"stealth"             yaml:"stealth"`
	Bin               string        `mapstructure:"bin"                 yaml:"bin"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"  yaml:"navigation_timeout"`
	NavigationsPerSec float64       `mapstructure:"navigations_per_sec" yaml:"navigations_per_sec"`
}

// StorageConfig controls the dataset.
type StorageConfig struct {
	Type  string      `mapstructure:"type"  yaml:"type"` // csv, sqlite
	Path  string      `mapstructure:"path"  yaml:"path"`
	Mongo MongoConfig `mapstructure:"mongo" yaml:"mongo"`
}

// MongoConfig controls the optional record mirror.
type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			CancelGrace: 1 * time.Second,
		},
		Site: SiteConfig{
			BaseURL:           "https://www.paodeacucar.com",
			ProductPathMarker: "/produto/",
		},
		Collector: CollectorConfig{
			SettleDelay:          2 * time.Second,
			ScrollDelay:          1 * time.Second,
			ScrollStallThreshold: 3,
			PageStallThreshold:   3,
			Full:                 LimitsConfig{},
			TestMode: LimitsConfig{
				MaxPages:       2,
				MaxURLsPerPage: 25,
				MaxScrollSteps: 3,
				MaxTotalURLs:   100,
			},
		},
		Browser: BrowserConfig{
			Headless:          true,
			Stealth:           true,
			NavigationTimeout: 60 * time.Second,
			NavigationsPerSec: 1,
		},
		Storage: StorageConfig{
			Type: "csv",
			Path: "./output/nutritional_data.csv",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "nutrigoat",
				Collection: "nutrition",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Limits returns the bounds for the named mode ("test" or "full").
func (c *CollectorConfig) Limits(mode string) LimitsConfig {
	if mode == "test" {
		return c.TestMode
	}
	return c.Full
}
