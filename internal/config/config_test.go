package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

const sampleYAML = `
server:
  port: 9000
site:
  categories:
    - id: "1"
      name: Açougue
      url: https://www.paodeacucar.com/categoria/alimentos/acougue
collector:
  settle_delay: 500ms
  test_mode:
    max_pages: 1
storage:
  type: sqlite
  path: /tmp/nutrition.db
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nutrigoat.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Collector.SettleDelay != 500*time.Millisecond {
		t.Errorf("settle delay = %s", cfg.Collector.SettleDelay)
	}
	if cfg.Collector.TestMode.MaxPages != 1 || cfg.Collector.TestMode.MaxTotalURLs != 100 {
		t.Errorf("test mode limits = %+v", cfg.Collector.TestMode)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("storage type = %q", cfg.Storage.Type)
	}
	if len(cfg.Site.Categories) != 1 || cfg.Site.Categories[0].DisplayName != "Açougue" {
		t.Errorf("categories = %+v", cfg.Site.Categories)
	}
	// untouched sections keep their defaults
	if cfg.Site.BaseURL != "https://www.paodeacucar.com" || !cfg.Browser.Headless {
		t.Errorf("defaults lost: %+v %+v", cfg.Site, cfg.Browser)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NUTRIGOAT_SERVER_PORT", "9100")
	t.Setenv("NUTRIGOAT_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "storage:\n  type: csv\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"storage type", func(c *Config) { c.Storage.Type = "parquet" }, "storage.type"},
		{"marker", func(c *Config) { c.Site.ProductPathMarker = "produto" }, "product_path_marker"},
		{"duplicate category", func(c *Config) {
			c.Site.Categories = []types.CategoryRef{
				{ID: "1", ListingURL: "https://x.test/a"},
				{ID: "1", ListingURL: "https://x.test/b"},
			}
		}, "duplicate id"},
		{"negative limit", func(c *Config) { c.Collector.TestMode.MaxPages = -1 }, "test_mode"},
		{"mongo uri", func(c *Config) {
			c.Storage.Mongo.Enabled = true
			c.Storage.Mongo.URI = "http://localhost"
		}, "mongo.uri"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	c := DefaultConfig().Collector
	if got := c.Limits("test"); got.MaxPages != 2 {
		t.Errorf("test limits = %+v", got)
	}
	if got := c.Limits("full"); got != (LimitsConfig{}) {
		t.Errorf("full limits should be unbounded, got %+v", got)
	}
}
