package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the collector.
type Metrics struct {
	// Run metrics
	RunsStarted   atomic.Int64
	RunsCompleted atomic.Int64
	RunsCancelled atomic.Int64
	RunsFailed    atomic.Int64
	RunActive     atomic.Int32

	// Discovery metrics
	URLsDiscovered      atomic.Int64
	URLsAlreadyKnown    atomic.Int64
	CategoriesProcessed atomic.Int64

	// Extraction metrics
	ProductsCollected atomic.Int64
	ProductsFailed    atomic.Int64
	RecordsStored     atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"nutrigoat_runs_started_total", "Collection runs started", "counter", m.RunsStarted.Load()},
		{"nutrigoat_runs_completed_total", "Collection runs that finished normally", "counter", m.RunsCompleted.Load()},
		{"nutrigoat_runs_cancelled_total", "Collection runs cancelled by a client", "counter", m.RunsCancelled.Load()},
		{"nutrigoat_runs_failed_total", "Collection runs aborted by an error", "counter", m.RunsFailed.Load()},
		{"nutrigoat_run_active", "Whether a collection run is in progress", "gauge", int64(m.RunActive.Load())},
		{"nutrigoat_urls_discovered_total", "Product URLs found on category listings", "counter", m.URLsDiscovered.Load()},
		{"nutrigoat_urls_already_known_total", "Discovered URLs skipped because the dataset has them", "counter", m.URLsAlreadyKnown.Load()},
		{"nutrigoat_categories_processed_total", "Categories fully discovered", "counter", m.CategoriesProcessed.Load()},
		{"nutrigoat_products_collected_total", "Product pages extracted successfully", "counter", m.ProductsCollected.Load()},
		{"nutrigoat_products_failed_total", "Product pages that could not be extracted", "counter", m.ProductsFailed.Load()},
		{"nutrigoat_records_stored_total", "Records appended to the dataset", "counter", m.RecordsStored.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_started":         m.RunsStarted.Load(),
		"runs_completed":       m.RunsCompleted.Load(),
		"runs_cancelled":       m.RunsCancelled.Load(),
		"runs_failed":          m.RunsFailed.Load(),
		"urls_discovered":      m.URLsDiscovered.Load(),
		"urls_already_known":   m.URLsAlreadyKnown.Load(),
		"categories_processed": m.CategoriesProcessed.Load(),
		"products_collected":   m.ProductsCollected.Load(),
		"products_failed":      m.ProductsFailed.Load(),
		"records_stored":       m.RecordsStored.Load(),
	}
}

// LogSummary writes the counters at info level.
func (m *Metrics) LogSummary() {
	args := make([]any, 0, 20)
	for k, v := range m.Snapshot() {
		args = append(args, k, v)
	}
	m.logger.Info("metrics summary", args...)
}
