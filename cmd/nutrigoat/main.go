package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	port        int
	storageType string
	outputPath  string
	headful     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrigoat",
		Short: "NutriGoat: incremental nutrition-facts collector",
		Long: `NutriGoat collects nutrition facts for grocery products from a single
online store. It discovers product links category by category, extracts
each product's nutrition table with a headless browser, and appends only
products it has not seen before to a flat dataset.

Commands:
  serve       HTTP API, live dashboard and progress stream
  collect     run one collection in the foreground
  categories  list the selectable categories
  export      write the dataset as XLSX or CSV`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "dataset backend: csv, sqlite")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "data", "d", "", "dataset path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger from the logging section.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if storageType != "" {
		cfg.Storage.Type = strings.ToLower(storageType)
	}
	if outputPath != "" {
		cfg.Storage.Path = outputPath
	}
	if headful {
		cfg.Browser.Headless = false
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NutriGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Server:\n")
			fmt.Printf("  Port:               %d\n", cfg.Server.Port)
			fmt.Printf("  Cancel Grace:       %s\n", cfg.Server.CancelGrace)
			fmt.Printf("\nSite:\n")
			fmt.Printf("  Base URL:           %s\n", cfg.Site.BaseURL)
			fmt.Printf("  Product Marker:     %s\n", cfg.Site.ProductPathMarker)
			fmt.Printf("  Categories:         %d configured\n", len(cfg.Site.Categories))
			fmt.Printf("\nCollector:\n")
			fmt.Printf("  Settle Delay:       %s\n", cfg.Collector.SettleDelay)
			fmt.Printf("  Scroll Delay:       %s\n", cfg.Collector.ScrollDelay)
			fmt.Printf("  Scroll Stall:       %d steps\n", cfg.Collector.ScrollStallThreshold)
			fmt.Printf("  Page Stall:         %d pages\n", cfg.Collector.PageStallThreshold)
			t := cfg.Collector.TestMode
			fmt.Printf("  Test Mode:          %d pages, %d urls/page, %d scrolls, %d total\n",
				t.MaxPages, t.MaxURLsPerPage, t.MaxScrollSteps, t.MaxTotalURLs)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:           %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:            %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Navigation Timeout: %s\n", cfg.Browser.NavigationTimeout)
			fmt.Printf("  Navigations/sec:    %g\n", cfg.Browser.NavigationsPerSec)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
			fmt.Printf("  Path:               %s\n", cfg.Storage.Path)
			fmt.Printf("  Mongo Mirror:       %v\n", cfg.Storage.Mongo.Enabled)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:               %s\n", cfg.Metrics.Path)
			return nil
		},
	}
}
