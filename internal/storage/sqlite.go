package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

//go:embed db/schema.sql
var sqliteSchema string

// SQLiteStore keeps the dataset in an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" is
// accepted for tests.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite_storage"),
	}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) LoadKnownURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `select distinct url from nutrition_records`)
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, &types.StorageError{Backend: s.Name(), Err: err}
		}
		known[u] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: err}
	}
	return known, nil
}

func (s *SQLiteStore) Append(ctx context.Context, records []*types.NutritionRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"insert into nutrition_records (%s) values (%s)",
		strings.Join(Columns, ", "), placeholders,
	))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.URL, r.ProductName, r.Category,
			r.Portion.Value, r.Portion.Unit,
			r.Calories, r.Carbohydrates, r.Protein,
			r.TotalFat, r.SaturatedFat, r.Fiber, r.Sugar, r.Sodium,
			r.CollectedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert %s: %w", r.URL, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.count += len(records)
	s.logger.Debug("records appended", "count", len(records), "session_total", s.count)
	return nil
}

// ReadAll returns every row in insertion order. An empty table reports
// types.ErrDatasetMissing, the same as a CSV file that was never written.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]*types.NutritionRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"select %s from nutrition_records order by id", strings.Join(Columns, ", "),
	))
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer rows.Close()

	var out []*types.NutritionRecord
	for rows.Next() {
		var (
			r         types.NutritionRecord
			collected string
		)
		err := rows.Scan(
			&r.URL, &r.ProductName, &r.Category, &r.Portion.Value, &r.Portion.Unit,
			&r.Calories, &r.Carbohydrates, &r.Protein, &r.TotalFat,
			&r.SaturatedFat, &r.Fiber, &r.Sugar, &r.Sodium,
			&collected,
		)
		if err != nil {
			return nil, &types.StorageError{Backend: s.Name(), Err: err}
		}
		if t, err := time.Parse(time.RFC3339, collected); err == nil {
			r.CollectedAt = t
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: err}
	}
	if len(out) == 0 {
		return nil, types.ErrDatasetMissing
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("sqlite dataset closed", "path", s.path, "appended", s.count)
	return s.db.Close()
}
