package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/catalog"
	"github.com/IshaanNene/NutriGoat/internal/export"
	"github.com/IshaanNene/NutriGoat/internal/storage"
)

var (
	exportFormat string
	exportOutput string
)

// categoriesCmd creates the "categories" subcommand.
func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List selectable categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, c := range catalog.New(cfg.Site.Categories, cfg.Site.BaseURL).All() {
				fmt.Printf("%3s  %-28s %s\n", c.ID, c.DisplayName, c.ListingURL)
			}
			return nil
		},
	}
}

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dataset as a spreadsheet",
		RunE:  runExport,
	}
	cmd.Flags().StringVarP(&exportFormat, "format", "f", "xlsx", "output format: xlsx, csv")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default next to the dataset)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	write := export.WriteXLSX
	switch strings.ToLower(exportFormat) {
	case "xlsx":
	case "csv":
		write = export.WriteCSV
	default:
		return fmt.Errorf("unsupported export format: %s", exportFormat)
	}

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	records, err := store.ReadAll(cmd.Context())
	if err != nil {
		return err
	}

	out := exportOutput
	if out == "" {
		base := strings.TrimSuffix(cfg.Storage.Path, filepath.Ext(cfg.Storage.Path))
		out = base + "_export." + strings.ToLower(exportFormat)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("dataset exported", "records", len(records), "file", out)
	fmt.Printf("Exported %d records to %s\n", len(records), out)
	return nil
}
