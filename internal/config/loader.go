package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("NUTRIGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("nutrigoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".nutrigoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env vars can bind to them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.cancel_grace", cfg.Server.CancelGrace)

	v.SetDefault("site.base_url", cfg.Site.BaseURL)
	v.SetDefault("site.product_path_marker", cfg.Site.ProductPathMarker)

	v.SetDefault("collector.settle_delay", cfg.Collector.SettleDelay)
	v.SetDefault("collector.scroll_delay", cfg.Collector.ScrollDelay)
	v.SetDefault("collector.scroll_stall_threshold", cfg.Collector.ScrollStallThreshold)
	v.SetDefault("collector.page_stall_threshold", cfg.Collector.PageStallThreshold)
	for name, lim := range map[string]LimitsConfig{"full": cfg.Collector.Full, "test_mode": cfg.Collector.TestMode} {
		v.SetDefault("collector."+name+".max_pages", lim.MaxPages)
		v.SetDefault("collector."+name+".max_urls_per_page", lim.MaxURLsPerPage)
		v.SetDefault("collector."+name+".max_scroll_steps", lim.MaxScrollSteps)
		v.SetDefault("collector."+name+".max_total_urls", lim.MaxTotalURLs)
	}

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.navigations_per_sec", cfg.Browser.NavigationsPerSec)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.mongo.enabled", cfg.Storage.Mongo.Enabled)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
