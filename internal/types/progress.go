package types

import "time"

// Severity tags a progress event for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySystem  Severity = "system"
)

// ProgressEvent is pushed to listeners while a collection runs.
type ProgressEvent struct {
	RunID           string         `json:"run_id,omitempty"`
	Message         string         `json:"message"`
	Severity        Severity       `json:"type"`
	Timestamp       string         `json:"timestamp"`
	ProgressPercent *float64       `json:"progress,omitempty"`
	SuccessCount    *int           `json:"success_count,omitempty"`
	TotalCount      *int           `json:"total_count,omitempty"`
	CategoryLabel   string         `json:"category,omitempty"`
	ProductLabel    string         `json:"product,omitempty"`
	ETALabel        string         `json:"eta,omitempty"`
	Stats           map[string]any `json:"stats,omitempty"`
}

// NewProgressEvent stamps a message with the current time.
func NewProgressEvent(severity Severity, message string) ProgressEvent {
	return ProgressEvent{
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// WithProgress sets the completion percentage.
func (e ProgressEvent) WithProgress(percent float64) ProgressEvent {
	e.ProgressPercent = &percent
	return e
}

// WithCounts sets the success and total counters.
func (e ProgressEvent) WithCounts(success, total int) ProgressEvent {
	e.SuccessCount = &success
	e.TotalCount = &total
	return e
}

// ProgressSink receives progress events. Implementations must not block.
type ProgressSink interface {
	Emit(event ProgressEvent)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(event ProgressEvent)

// Emit calls f(event).
func (f SinkFunc) Emit(event ProgressEvent) { f(event) }

// MultiSink fans an event out to several sinks.
type MultiSink []ProgressSink

// Emit forwards the event to every sink.
func (m MultiSink) Emit(event ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}
