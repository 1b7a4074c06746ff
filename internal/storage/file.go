package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// CSVStore keeps the dataset in a flat CSV file with a fixed header.
// Appends open the file in append mode, so records written before a crash
// survive.
type CSVStore struct {
	path   string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStore creates a CSV dataset at outputPath. The file itself is
// created on the first append.
func NewCSVStore(outputPath string, logger *slog.Logger) (*CSVStore, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &CSVStore{
		path:   outputPath,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStore) Name() string { return "csv" }

// Path returns the dataset file location.
func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) LoadKnownURLs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{})
	err := s.scan(func(idx map[string]int, row []string) {
		if i := idx["url"]; i < len(row) && row[i] != "" {
			known[row[i]] = struct{}{}
		}
	}, Columns)
	if errors.Is(err, types.ErrDatasetMissing) {
		return known, nil
	}
	if err != nil {
		return nil, err
	}
	return known, nil
}

func (s *CSVStore) ReadAll(ctx context.Context) ([]*types.NutritionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.NutritionRecord
	err := s.scan(func(idx map[string]int, row []string) {
		out = append(out, parseRow(idx, row))
	}, Columns)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan streams data rows to fn after checking the header carries required.
func (s *CSVStore) scan(fn func(idx map[string]int, row []string), required []string) error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.ErrDatasetMissing
	}
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return types.ErrDatasetMissing
	}
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("read header: %w", err)}
	}

	idx := headerIndex(header)
	var missing []string
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &types.SchemaError{Path: s.path, Missing: missing}
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("read row: %w", err)}
		}
		fn(idx, row)
	}
}

func (s *CSVStore) Append(ctx context.Context, records []*types.NutritionRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHeader(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("open dataset: %w", err)}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write CSV header: %w", err)}
		}
	}
	for _, rec := range records {
		if err := w.Write(Row(rec)); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write CSV row: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.count += len(records)
	s.logger.Debug("records appended", "count", len(records), "session_total", s.count)
	return nil
}

// checkHeader refuses to append rows under a header other than Columns. A
// missing or empty file is fine; the header is written with the first row.
func (s *CSVStore) checkHeader() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("read header: %w", err)}
	}
	if slices.Equal(header, Columns) {
		return nil
	}

	idx := headerIndex(header)
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		// same columns, different order
		return &types.SchemaError{Path: s.path, Missing: []string{"column order " + strings.Join(Columns, ",")}}
	}
	return &types.SchemaError{Path: s.path, Missing: missing}
}

func (s *CSVStore) Close() error {
	s.logger.Info("CSV dataset closed", "path", s.path, "appended", s.count)
	return nil
}
