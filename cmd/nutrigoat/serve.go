package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/NutriGoat/internal/api"
	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/engine"
	"github.com/IshaanNene/NutriGoat/internal/observability"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and dashboard",
		RunE:  runServe,
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics(logger)
	hub := api.NewHub(logger)

	collector := engine.New(cfg, store, browser.NewRodLauncher(cfg.Browser, logger), logger)
	collector.SetMetrics(metrics)
	collector.SetSink(types.MultiSink{hub, engine.NewLogSink(logger)})

	server := api.NewServer(cfg, collector, store, hub, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		status := collector.Status()
		if status.Current == nil {
			return nil
		}
		logger.Info("stopping active collection", "run", status.Current.ID)
		if err := collector.Cancel(); err != nil && !errors.Is(err, types.ErrNotRunning) {
			return err
		}
		collector.Wait()
		return nil
	})

	err = g.Wait()
	metrics.LogSummary()
	return err
}
