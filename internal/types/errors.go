package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	ErrAlreadyRunning  = errors.New("a collection is already running")
	ErrNotRunning      = errors.New("no collection is running")
	ErrNoCategories    = errors.New("no category selected")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidMode     = errors.New("invalid collection mode")
	ErrNoProducts      = errors.New("no product given")
	ErrInvalidURL      = errors.New("invalid product URL")
	ErrDatasetMissing  = errors.New("no nutrition dataset available")
	ErrRunCancelled    = errors.New("collection cancelled")
)

// SchemaError reports a dataset whose header lacks expected columns.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %s is missing columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

// ExtractError wraps a fault while collecting one product page.
type ExtractError struct {
	URL   string
	Phase string // navigate, expand, structured, html
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s failed during %s: %v", e.URL, e.Phase, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// DiscoveryError wraps a fault while walking a category listing.
type DiscoveryError struct {
	Category string
	Page     int
	Err      error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery error for %s (page %d): %v", e.Category, e.Page, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
