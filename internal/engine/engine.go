package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/NutriGoat/internal/browser"
	"github.com/IshaanNene/NutriGoat/internal/catalog"
	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/discovery"
	"github.com/IshaanNene/NutriGoat/internal/extract"
	"github.com/IshaanNene/NutriGoat/internal/observability"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// State represents the collector's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Discoverer finds product references on a category listing.
type Discoverer interface {
	Discover(ctx context.Context, page browser.Page, cat types.CategoryRef, c discovery.Constraints) ([]types.ProductReference, error)
}

// Extractor turns one product page into a record.
type Extractor interface {
	Extract(ctx context.Context, page browser.Page, ref types.ProductReference) (*types.NutritionRecord, error)
}

// Collector orchestrates runs: discovery over the selected categories, then
// extraction of every product not yet in the dataset. At most one run is
// active at a time.
type Collector struct {
	cfg        *config.Config
	logger     *slog.Logger
	catalog    *catalog.Catalog
	store      storage.Store
	launcher   browser.Launcher
	discoverer Discoverer
	extractor  Extractor
	sink       types.ProgressSink
	metrics    *observability.Metrics

	state           atomic.Int32
	cancelRequested atomic.Bool

	mu            sync.RWMutex
	current       *Run
	last          *Run
	cancelBrowser context.CancelFunc
	cancelTimer   *time.Timer
}

// New creates a Collector. Discovery and extraction are built from cfg and
// can be replaced with SetDiscoverer and SetExtractor.
func New(cfg *config.Config, store storage.Store, launcher browser.Launcher, logger *slog.Logger) *Collector {
	return &Collector{
		cfg:      cfg,
		logger:   logger.With("component", "collector"),
		catalog:  catalog.New(cfg.Site.Categories, cfg.Site.BaseURL),
		store:    store,
		launcher: launcher,
		discoverer: discovery.New(discovery.Options{
			SettleDelay:          cfg.Collector.SettleDelay,
			ScrollDelay:          cfg.Collector.ScrollDelay,
			ScrollStallThreshold: cfg.Collector.ScrollStallThreshold,
			PageStallThreshold:   cfg.Collector.PageStallThreshold,
			ProductPathMarker:    cfg.Site.ProductPathMarker,
		}, logger),
		extractor: extract.New(cfg.Collector.SettleDelay, logger),
		sink:      types.SinkFunc(func(types.ProgressEvent) {}),
		metrics:   observability.NewMetrics(logger),
	}
}

// SetDiscoverer replaces the listing walker.
func (c *Collector) SetDiscoverer(d Discoverer) {
	c.discoverer = d
}

// SetExtractor replaces the product page extractor.
func (c *Collector) SetExtractor(e Extractor) {
	c.extractor = e
}

// SetSink sets where progress events go.
func (c *Collector) SetSink(s types.ProgressSink) {
	c.sink = s
}

// SetMetrics shares a metrics registry with the collector.
func (c *Collector) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Catalog returns the categories runs can select from.
func (c *Collector) Catalog() *catalog.Catalog {
	return c.catalog
}

// Metrics returns the collector's counters.
func (c *Collector) Metrics() *observability.Metrics {
	return c.metrics
}

// GetState returns the current lifecycle state.
func (c *Collector) GetState() State {
	return State(c.state.Load())
}

// Start validates the request and launches a background run.
func (c *Collector) Start(mode Mode, categoryIDs []string) (*Run, error) {
	run, err := c.newRun(mode, categoryIDs)
	if err != nil {
		return nil, err
	}
	return c.launch(run)
}

// Run starts a collection and blocks until it finishes. Cancelling ctx
// cancels the run, which then reports types.ErrRunCancelled.
func (c *Collector) Run(ctx context.Context, mode Mode, categoryIDs []string) (*Run, error) {
	run, err := c.Start(mode, categoryIDs)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, run)
}

// DiscoverURLs runs discovery only and blocks until it finishes. The new
// products found are in the returned run's Candidates.
func (c *Collector) DiscoverURLs(ctx context.Context, mode Mode, categoryIDs []string) (*Run, error) {
	run, err := c.newRun(mode, categoryIDs)
	if err != nil {
		return nil, err
	}
	run.discoverOnly = true
	if _, err := c.launch(run); err != nil {
		return nil, err
	}
	return c.await(ctx, run)
}

// CollectURLs extracts the given products without walking any listing and
// blocks until it finishes. Products already in the dataset are skipped.
func (c *Collector) CollectURLs(ctx context.Context, refs []types.ProductReference) (*Run, error) {
	if len(refs) == 0 {
		return nil, types.ErrNoProducts
	}
	preset := make([]types.ProductReference, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if err := config.ValidateURL(ref.URL); err != nil {
			return nil, fmt.Errorf("%w %q: %v", types.ErrInvalidURL, ref.URL, err)
		}
		if _, ok := seen[ref.URL]; ok {
			continue
		}
		seen[ref.URL] = struct{}{}
		preset = append(preset, ref)
	}

	run := c.buildRun(ModeFull, nil)
	run.preset = preset
	if _, err := c.launch(run); err != nil {
		return nil, err
	}
	return c.await(ctx, run)
}

func (c *Collector) newRun(mode Mode, categoryIDs []string) (*Run, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	cats, err := c.catalog.Resolve(categoryIDs)
	if err != nil {
		return nil, err
	}
	return c.buildRun(mode, cats), nil
}

func (c *Collector) buildRun(mode Mode, cats []types.CategoryRef) *Run {
	return &Run{
		ID:         uuid.NewString(),
		Mode:       mode,
		Categories: cats,
		Stats:      &Stats{StartTime: time.Now()},
		done:       make(chan struct{}),
	}
}

// launch claims the single run slot and starts run in the background.
func (c *Collector) launch(run *Run) (*Run, error) {
	// State transitions happen under mu so Cancel never observes a running
	// collector without its run.
	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		c.mu.Unlock()
		return nil, types.ErrAlreadyRunning
	}
	browserCtx, cancel := context.WithCancel(context.Background())
	c.cancelRequested.Store(false)
	c.current = run
	c.cancelBrowser = cancel
	c.cancelTimer = nil
	c.metrics.RunsStarted.Add(1)
	c.metrics.RunActive.Store(1)
	c.mu.Unlock()

	c.logger.Info("collection started",
		"run", run.ID,
		"mode", run.Mode,
		"categories", len(run.Categories),
		"products", len(run.preset),
		"discover_only", run.discoverOnly,
	)

	go c.execute(browserCtx, run)
	return run, nil
}

func (c *Collector) await(ctx context.Context, run *Run) (*Run, error) {
	select {
	case <-run.Done():
	case <-ctx.Done():
		_ = c.cancel(run)
		<-run.Done()
	}
	switch run.Outcome() {
	case OutcomeFailed:
		return run, fmt.Errorf("run %s failed", run.ID)
	case OutcomeCancelled:
		return run, types.ErrRunCancelled
	}
	return run, nil
}

// Cancel asks the active run to stop. Loops stop at their next check; the
// browser is torn down after the configured grace period so that blocked
// page operations unwind.
func (c *Collector) Cancel() error {
	return c.cancel(nil)
}

// cancel stops the active run, or only target when it is set.
func (c *Collector) cancel(target *Run) error {
	c.mu.Lock()
	if c.GetState() != StateRunning || (target != nil && c.current != target) {
		c.mu.Unlock()
		return types.ErrNotRunning
	}
	if c.cancelRequested.Swap(true) {
		c.mu.Unlock()
		return nil
	}
	run := c.current
	c.cancelTimer = time.AfterFunc(c.cfg.Server.CancelGrace, c.cancelBrowser)
	c.mu.Unlock()

	c.logger.Info("cancellation requested", "run", run.ID)
	c.emit(run, types.NewProgressEvent(types.SeverityWarning, "Cancellation requested, stopping after the current step"))
	return nil
}

// Wait blocks until the active run, if any, has finished its cleanup.
func (c *Collector) Wait() {
	c.mu.RLock()
	run := c.current
	c.mu.RUnlock()
	if run != nil {
		<-run.done
	}
}

// Status reports the state, the active run and the last finished run.
func (c *Collector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{State: c.GetState().String()}
	if c.current != nil {
		st.Current = c.runStatus(c.current)
		st.Current.CancelRequested = c.cancelRequested.Load()
	}
	if c.last != nil {
		st.Last = c.runStatus(c.last)
	}
	return st
}

func (c *Collector) runStatus(r *Run) *RunStatus {
	ids := make([]string, len(r.Categories))
	for i, cat := range r.Categories {
		ids[i] = cat.ID
	}
	rs := &RunStatus{
		ID:         r.ID,
		Mode:       r.Mode,
		Categories: ids,
		StartedAt:  r.Stats.StartTime,
		Progress:   r.progress,
		Outcome:    r.outcome,
		Stats:      r.Stats.Snapshot(),
	}
	if !r.finished.IsZero() {
		f := r.finished
		rs.FinishedAt = &f
	}
	return rs
}

func (c *Collector) cancelled(ctx context.Context) bool {
	return c.cancelRequested.Load() || ctx.Err() != nil
}

// emit stamps the event with the run id and keeps progress monotonic.
func (c *Collector) emit(run *Run, ev types.ProgressEvent) {
	ev.RunID = run.ID
	if ev.ProgressPercent != nil {
		c.mu.Lock()
		p := *ev.ProgressPercent
		if p < run.progress {
			p = run.progress
		}
		if p > 100 {
			p = 100
		}
		run.progress = p
		c.mu.Unlock()
		ev.ProgressPercent = &p
	}
	c.sink.Emit(ev)
}

// finish records the outcome and returns the collector to idle. The final
// system event is emitted after the state flips so listeners can start a
// new run as soon as they see it.
func (c *Collector) finish(run *Run, outcome Outcome) {
	c.mu.Lock()
	if c.cancelTimer != nil {
		c.cancelTimer.Stop()
	}
	if c.cancelBrowser != nil {
		c.cancelBrowser()
	}
	run.outcome = outcome
	run.finished = time.Now()
	c.last = run
	c.current = nil
	c.cancelBrowser = nil
	c.cancelTimer = nil

	switch outcome {
	case OutcomeCompleted:
		c.metrics.RunsCompleted.Add(1)
	case OutcomeCancelled:
		c.metrics.RunsCancelled.Add(1)
	default:
		c.metrics.RunsFailed.Add(1)
	}
	c.metrics.RunActive.Store(0)
	c.cancelRequested.Store(false)
	c.state.Store(int32(StateIdle))
	c.mu.Unlock()

	c.logger.Info("collection finished",
		"run", run.ID,
		"outcome", outcome,
		"successes", run.Stats.Successes.Load(),
		"failures", run.Stats.Failures.Load(),
		"elapsed", time.Since(run.Stats.StartTime).Round(time.Millisecond),
	)

	c.emit(run, types.NewProgressEvent(types.SeveritySystem, "Ready for a new collection"))
	close(run.done)
}
