package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.CancelGrace < 0 {
		return fmt.Errorf("server.cancel_grace must be >= 0")
	}

	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if !strings.HasPrefix(cfg.Site.ProductPathMarker, "/") {
		return fmt.Errorf("site.product_path_marker must start with '/', got %q", cfg.Site.ProductPathMarker)
	}
	seen := make(map[string]bool, len(cfg.Site.Categories))
	for _, c := range cfg.Site.Categories {
		if c.ID == "" {
			return fmt.Errorf("site.categories: entry %q has no id", c.DisplayName)
		}
		if seen[c.ID] {
			return fmt.Errorf("site.categories: duplicate id %q", c.ID)
		}
		seen[c.ID] = true
		if err := ValidateURL(c.ListingURL); err != nil {
			return fmt.Errorf("site.categories[%s]: %w", c.ID, err)
		}
	}

	if cfg.Collector.SettleDelay < 0 || cfg.Collector.ScrollDelay < 0 {
		return fmt.Errorf("collector delays must be >= 0")
	}
	if cfg.Collector.ScrollStallThreshold < 1 {
		return fmt.Errorf("collector.scroll_stall_threshold must be >= 1, got %d", cfg.Collector.ScrollStallThreshold)
	}
	if cfg.Collector.PageStallThreshold < 1 {
		return fmt.Errorf("collector.page_stall_threshold must be >= 1, got %d", cfg.Collector.PageStallThreshold)
	}
	for name, lim := range map[string]LimitsConfig{"full": cfg.Collector.Full, "test_mode": cfg.Collector.TestMode} {
		if lim.MaxPages < 0 || lim.MaxURLsPerPage < 0 || lim.MaxScrollSteps < 0 || lim.MaxTotalURLs < 0 {
			return fmt.Errorf("collector.%s limits must be >= 0", name)
		}
	}

	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Browser.NavigationsPerSec < 0 {
		return fmt.Errorf("browser.navigations_per_sec must be >= 0")
	}

	if cfg.Storage.Type != "csv" && cfg.Storage.Type != "sqlite" {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, sqlite)", cfg.Storage.Type)
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if cfg.Storage.Mongo.Enabled {
		if !strings.HasPrefix(cfg.Storage.Mongo.URI, "mongodb://") && !strings.HasPrefix(cfg.Storage.Mongo.URI, "mongodb+srv://") {
			return fmt.Errorf("storage.mongo.uri must be a mongodb:// URI, got %q", cfg.Storage.Mongo.URI)
		}
		if cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo database and collection are required")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
