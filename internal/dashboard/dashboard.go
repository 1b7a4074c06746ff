// Package dashboard serves the single-page collection monitor.
package dashboard

import (
	"log/slog"
	"net/http"
)

// Dashboard serves the live progress page. The page talks to the API
// endpoints on the same origin.
type Dashboard struct {
	logger *slog.Logger
}

// NewDashboard creates a dashboard handler.
func NewDashboard(logger *slog.Logger) *Dashboard {
	return &Dashboard{
		logger: logger.With("component", "dashboard"),
	}
}

func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write([]byte(dashboardHTML)); err != nil {
		d.logger.Debug("dashboard write failed", "error", err)
	}
}
