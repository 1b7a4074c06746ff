package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Store is the persistent nutrition dataset. It is the only state shared
// between runs.
type Store interface {
	// LoadKnownURLs returns every URL already in the dataset. A dataset that
	// does not exist yet yields an empty set.
	LoadKnownURLs(ctx context.Context) (map[string]struct{}, error)

	// Append persists records at the end of the dataset.
	Append(ctx context.Context, records []*types.NutritionRecord) error

	// ReadAll returns every record in insertion order.
	ReadAll(ctx context.Context) ([]*types.NutritionRecord, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Filter narrows a dataset query. Category and Name are case-insensitive
// substrings; Limit 0 means no limit.
type Filter struct {
	Category string
	Name     string
	Skip     int
	Limit    int
}

// Page is one slice of a filtered dataset.
type Page struct {
	Total int                      `json:"total"`
	Items []*types.NutritionRecord `json:"items"`
}

// Query filters and paginates the dataset held by s.
func Query(ctx context.Context, s Store, f Filter) (*Page, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	cat := strings.ToLower(f.Category)
	name := strings.ToLower(f.Name)
	matched := make([]*types.NutritionRecord, 0, len(records))
	for _, r := range records {
		if cat != "" && !strings.Contains(strings.ToLower(r.Category), cat) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(r.ProductName), name) {
			continue
		}
		matched = append(matched, r)
	}

	page := &Page{Total: len(matched), Items: []*types.NutritionRecord{}}
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Skip >= len(matched) {
		return page, nil
	}
	end := len(matched)
	if f.Limit > 0 && f.Skip+f.Limit < end {
		end = f.Skip + f.Limit
	}
	page.Items = matched[f.Skip:end]
	return page, nil
}

// FilterNew returns the candidates whose URL is not in known, keeping
// candidate order. It has no side effects.
func FilterNew(candidates []types.ProductReference, known map[string]struct{}) []types.ProductReference {
	out := make([]types.ProductReference, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := known[c.URL]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// New opens the configured dataset, wrapped with a MongoDB mirror when enabled.
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	var primary Store
	var err error
	switch cfg.Type {
	case "csv":
		primary, err = NewCSVStore(cfg.Path, logger)
	case "sqlite":
		primary, err = NewSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Mongo.Enabled {
		return primary, nil
	}
	mirror, err := NewMongoMirror(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logger)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	return NewMirroredStore(primary, logger, mirror), nil
}
