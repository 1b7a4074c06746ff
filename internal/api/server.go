package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/catalog"
	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/dashboard"
	"github.com/IshaanNene/NutriGoat/internal/engine"
	"github.com/IshaanNene/NutriGoat/internal/export"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

const defaultPageSize = 10

// Collector is the control surface the API drives.
type Collector interface {
	Start(mode engine.Mode, categoryIDs []string) (*engine.Run, error)
	Run(ctx context.Context, mode engine.Mode, categoryIDs []string) (*engine.Run, error)
	DiscoverURLs(ctx context.Context, mode engine.Mode, categoryIDs []string) (*engine.Run, error)
	CollectURLs(ctx context.Context, refs []types.ProductReference) (*engine.Run, error)
	Cancel() error
	Status() engine.Status
	Catalog() *catalog.Catalog
}

// Server exposes collection control, dataset queries, exports and the
// progress stream over HTTP.
type Server struct {
	cfg       *config.Config
	mux       *http.ServeMux
	collector Collector
	store     storage.Store
	hub       *Hub
	metrics   http.Handler
	logger    *slog.Logger
}

// NewServer creates a new API server. metrics may be nil.
func NewServer(cfg *config.Config, collector Collector, store storage.Store, hub *Hub, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		collector: collector,
		store:     store,
		hub:       hub,
		metrics:   metrics,
		logger:    logger.With("component", "api_server"),
	}

	s.registerRoutes(dashboard.NewDashboard(logger))
	return s
}

// Handler returns the routed handler with logging and compression applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(compress(s.mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("API server shutting down")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes(dash http.Handler) {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)

	// Collection control
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/collect", s.handleCollect)
	s.mux.HandleFunc("POST /api/collect/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /api/collect/urls", s.handleCollectURLs)
	s.mux.HandleFunc("POST /api/collect/products", s.handleCollectProducts)
	s.mux.HandleFunc("POST /api/collect/category", s.handleCollectCategory)
	s.mux.Handle("GET /api/events", s.hub)

	// Dataset
	s.mux.HandleFunc("GET /api/products", s.handleProducts)
	s.mux.HandleFunc("GET /api/export.xlsx", s.handleExportXLSX)
	s.mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics)
	}
	s.mux.Handle("GET /{$}", dash)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
		"storage": s.store.Name(),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.collector.Catalog().All())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.collector.Status())
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode       string   `json:"mode"`
		Categories []string `json:"categories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Mode == "" {
		body.Mode = string(engine.ModeTest)
	}

	run, err := s.collector.Start(engine.Mode(body.Mode), body.Categories)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"status":     "started",
		"run_id":     run.ID,
		"mode":       run.Mode,
		"categories": run.Categories,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.collector.Cancel(); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// The three handlers below block until their run finishes. A client that
// disconnects cancels the run.

func (s *Server) handleCollectURLs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode       string   `json:"mode"`
		Categories []string `json:"categories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Mode == "" {
		body.Mode = string(engine.ModeTest)
	}

	run, err := s.collector.DiscoverURLs(r.Context(), engine.Mode(body.Mode), body.Categories)
	s.runResponse(w, run, err, func(run *engine.Run) any {
		if run.Candidates == nil {
			return []types.ProductReference{}
		}
		return run.Candidates
	})
}

func (s *Server) handleCollectProducts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Products []types.ProductReference `json:"products"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	run, err := s.collector.CollectURLs(r.Context(), body.Products)
	s.runResponse(w, run, err, storedRecords)
}

func (s *Server) handleCollectCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode     string `json:"mode"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Mode == "" {
		body.Mode = string(engine.ModeTest)
	}
	if body.Category == "" {
		s.errorResponse(w, http.StatusBadRequest, types.ErrNoCategories.Error())
		return
	}

	run, err := s.collector.Run(r.Context(), engine.Mode(body.Mode), []string{body.Category})
	s.runResponse(w, run, err, storedRecords)
}

func storedRecords(run *engine.Run) any {
	if run.Records == nil {
		return []*types.NutritionRecord{}
	}
	return run.Records
}

// runResponse reports a finished synchronous run. Rejected requests have no
// run; cancelled runs still return what they gathered.
func (s *Server) runResponse(w http.ResponseWriter, run *engine.Run, err error, items func(*engine.Run) any) {
	if run == nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	status, outcome := http.StatusOK, engine.OutcomeCompleted
	switch {
	case errors.Is(err, types.ErrRunCancelled):
		outcome = engine.OutcomeCancelled
	case err != nil:
		status, outcome = http.StatusInternalServerError, engine.OutcomeFailed
	}
	s.jsonResponse(w, status, map[string]any{
		"run_id":  run.ID,
		"outcome": outcome,
		"stats":   run.Stats.Snapshot(),
		"items":   items(run),
	})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := intParam(q.Get("skip"), 0)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid skip: "+err.Error())
		return
	}
	limit, err := intParam(q.Get("limit"), defaultPageSize)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid limit: "+err.Error())
		return
	}

	page, err := storage.Query(r.Context(), s.store, storage.Filter{
		Category: q.Get("category"),
		Name:     q.Get("name"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"total": page.Total,
		"skip":  skip,
		"limit": limit,
		"items": page.Items,
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "nutritional_data.xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "nutritional_data.csv", export.ContentTypeCSV, export.WriteCSV)
}

// export renders the whole dataset into memory first so failures still get
// a JSON error instead of a truncated file.
func (s *Server) export(w http.ResponseWriter, r *http.Request, filename, contentType string, write func(w io.Writer, records []*types.NutritionRecord) error) {
	records, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, records); err != nil {
		s.logger.Error("export failed", "file", filename, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("export write interrupted", "error", err)
	}
}

// statusFor maps domain errors onto HTTP status codes. Schema mismatches
// and storage faults fall through to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrAlreadyRunning), errors.Is(err, types.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, types.ErrNoCategories),
		errors.Is(err, types.ErrUnknownCategory),
		errors.Is(err, types.ErrInvalidMode),
		errors.Is(err, types.ErrNoProducts),
		errors.Is(err, types.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrDatasetMissing):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}
