package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Mode selects the discovery limits of a run.
type Mode string

const (
	ModeTest Mode = "test"
	ModeFull Mode = "full"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTest, ModeFull:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q (valid: test, full)", types.ErrInvalidMode, s)
}

// Outcome is how a finished run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Stats tracks the counters of one collection run.
type Stats struct {
	Successes           atomic.Int64
	Failures            atomic.Int64
	AlreadyExisting     atomic.Int64
	CategoriesProcessed atomic.Int64
	StartTime           time.Time

	mu           sync.Mutex
	timed        int64
	totalSeconds float64
}

// ObserveDuration records how long one product took.
func (s *Stats) ObserveDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timed++
	s.totalSeconds += d.Seconds()
}

// AvgSecondsPerProduct is the mean extraction time so far.
func (s *Stats) AvgSecondsPerProduct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timed == 0 {
		return 0
	}
	return s.totalSeconds / float64(s.timed)
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"successes":               s.Successes.Load(),
		"failures":                s.Failures.Load(),
		"already_existing":        s.AlreadyExisting.Load(),
		"categories_processed":    s.CategoriesProcessed.Load(),
		"avg_seconds_per_product": math.Round(s.AvgSecondsPerProduct()*100) / 100,
		"elapsed":                 time.Since(s.StartTime).Round(time.Second).String(),
	}
}

// Run is one collection, alive from Start until its cleanup finishes.
type Run struct {
	ID         string
	Mode       Mode
	Categories []types.CategoryRef
	Stats      *Stats

	// Candidates are the new products the run set out to extract and
	// Records the ones it stored. Both are final once Done is closed.
	Candidates []types.ProductReference
	Records    []*types.NutritionRecord

	preset       []types.ProductReference
	discoverOnly bool

	done     chan struct{}
	progress float64
	outcome  Outcome
	finished time.Time
}

// Done is closed once the run has fully cleaned up.
func (r *Run) Done() <-chan struct{} { return r.done }

// Outcome is valid after Done is closed.
func (r *Run) Outcome() Outcome {
	<-r.done
	return r.outcome
}

// RunStatus is the public view of a run.
type RunStatus struct {
	ID              string         `json:"id"`
	Mode            Mode           `json:"mode"`
	Categories      []string       `json:"categories"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	Progress        float64        `json:"progress"`
	CancelRequested bool           `json:"cancel_requested,omitempty"`
	Outcome         Outcome        `json:"outcome,omitempty"`
	Stats           map[string]any `json:"stats"`
}

// Status describes the collector for the status endpoint.
type Status struct {
	State   string     `json:"state"`
	Current *RunStatus `json:"current,omitempty"`
	Last    *RunStatus `json:"last,omitempty"`
}

func etaLabel(avgSeconds float64, remaining int) string {
	if avgSeconds <= 0 || remaining <= 0 {
		return ""
	}
	d := time.Duration(avgSeconds * float64(remaining) * float64(time.Second))
	return d.Round(time.Second).String()
}

// LogSink mirrors progress events to a logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every event.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "progress")}
}

// Emit logs the event at a level matching its severity.
func (s *LogSink) Emit(ev types.ProgressEvent) {
	level := slog.LevelInfo
	switch ev.Severity {
	case types.SeverityWarning:
		level = slog.LevelWarn
	case types.SeverityError:
		level = slog.LevelError
	}
	args := []any{"run", ev.RunID}
	if ev.ProgressPercent != nil {
		args = append(args, "progress", fmt.Sprintf("%.1f%%", *ev.ProgressPercent))
	}
	if ev.CategoryLabel != "" {
		args = append(args, "category", ev.CategoryLabel)
	}
	if ev.ETALabel != "" {
		args = append(args, "eta", ev.ETALabel)
	}
	s.logger.Log(context.Background(), level, ev.Message, args...)
}
