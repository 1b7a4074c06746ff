package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/engine"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var (
	collectMode       string
	collectCategories []string
	collectAll        bool
)

// collectCmd creates the "collect" subcommand.
func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection in the foreground",
		Long: `Discover product links in the selected categories, skip products already
in the dataset, and extract the rest. Progress is written to the log.`,
		Example: `  nutrigoat collect --mode test --category 1 --category 7
  nutrigoat collect --mode full --all`,
		RunE: runCollect,
	}
	cmd.Flags().StringVarP(&collectMode, "mode", "m", "test", "collection mode: test, full")
	cmd.Flags().StringSliceVar(&collectCategories, "category", nil, "category id (repeatable)")
	cmd.Flags().BoolVar(&collectAll, "all", false, "collect every category")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	mode, err := engine.ParseMode(collectMode)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	collector := engine.New(cfg, store, browser.NewRodLauncher(cfg.Browser, logger), logger)
	collector.SetSink(engine.NewLogSink(logger))

	ids := collectCategories
	if collectAll {
		ids = nil
		for _, c := range collector.Catalog().All() {
			ids = append(ids, c.ID)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := collector.Run(ctx, mode, ids)
	if errors.Is(err, types.ErrRunCancelled) {
		logger.Warn("collection interrupted")
	} else if err != nil {
		return err
	}

	stats := run.Stats.Snapshot()
	fmt.Printf("\nCollection %s (%s)\n", run.Outcome(), stats["elapsed"])
	fmt.Printf("   Collected:        %v\n", stats["successes"])
	fmt.Printf("   Failed:           %v\n", stats["failures"])
	fmt.Printf("   Already present:  %v\n", stats["already_existing"])
	fmt.Printf("   Categories:       %v\n", stats["categories_processed"])
	fmt.Printf("   Avg per product:  %vs\n", stats["avg_seconds_per_product"])
	fmt.Printf("   Dataset:          %s (%s)\n", cfg.Storage.Path, store.Name())
	return nil
}
