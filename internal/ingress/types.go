package ingress

import "github.com/mattjoyce/popgate/internal/stats"

// OpenResponse is the success body for GET /open.
type OpenResponse struct {
	OK              bool   `json:"ok"`
	Status          string `json:"status"` // queued | suppressed
	Target          string `json:"target"`
	Mode            string `json:"mode"`
	FirstWindowDone bool   `json:"first_window_done"`
}

// ErrorResponse is the failure body for all endpoints.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// StatsResponse is the GET /stats snapshot.
type StatsResponse struct {
	stats.Snapshot
	QueueSize       int    `json:"queue_size"`
	DedupeWindowS   int    `json:"dedupe_window_s"`
	Mode            string `json:"mode"`
	FirstWindowDone bool   `json:"first_window_done"`
}

// ResetResponse is the body for POST /reset-first-window.
type ResetResponse struct {
	OK              bool `json:"ok"`
	FirstWindowDone bool `json:"first_window_done"`
}
