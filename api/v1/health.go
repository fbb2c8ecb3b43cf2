package v1

import "net/http"

// Health summarises the background components behind the API
type Health struct {
	Status         string         `json:"status"`
	MonitorRunning bool           `json:"monitor_running"`
	QueuePending   map[string]int `json:"queue_pending,omitempty"`
	CacheEntries   int            `json:"cache_entries"`
	CacheStale     int            `json:"cache_stale"`
}

// Option configures Handlers
type Option func(*Handlers)

// WithHealth sets the source of GET /health reports
func WithHealth(report func() Health) Option {
	return func(h *Handlers) {
		h.health = report
	}
}

// GetHealth reports background component state. It answers 503 while the deviation
// monitor is not running.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if h.health == nil {
		writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok"})
		return
	}

	report := h.health()
	status := http.StatusOK
	report.Status = "ok"
	if !report.MonitorRunning {
		status = http.StatusServiceUnavailable
		report.Status = "degraded"
	}
	writeJSON(r.Context(), w, status, report)
}
