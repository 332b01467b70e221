package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-picker/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

const readinessTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Ready          bool   `json:"ready"`
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	Database       string `json:"database"`
	DatabaseError  string `json:"databaseError,omitempty"`
	BatchesRunning int    `json:"batchesRunning"`

	// Memory pressure, absent without a monitor
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`
	MemoryPaused bool    `json:"memoryPaused,omitempty"`

	// Indexer info, absent when indexing is disabled
	IndexingEnabled bool   `json:"indexingEnabled"`
	Indexing        bool   `json:"indexing"`
	LastIndexed     string `json:"lastIndexed,omitempty"`
	FilesIndexed    int64  `json:"filesIndexed,omitempty"`
	IndexErrors     int64  `json:"indexErrors,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	Media  map[string]int `json:"media,omitempty"`
	Grants int            `json:"grants"`
}

func (h *Handlers) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return h.store.Ping(ctx)
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:         statusHealthy,
		Ready:          true,
		Version:        startup.Version,
		Uptime:         time.Since(h.started).Round(time.Second).String(),
		Database:       h.store.Path(),
		BatchesRunning: h.runner.Running(),
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if err := h.ping(r.Context()); err != nil {
		response.Status = statusUnhealthy
		response.Ready = false
		response.DatabaseError = err.Error()
	} else if stats, err := h.store.Stats(); err == nil {
		response.Media = stats.Collections
		response.Grants = stats.Grants
	}

	if h.indexer != nil {
		response.IndexingEnabled = true
		response.Indexing = h.indexer.IsIndexing()
		last := h.indexer.LastResult()
		if !last.Started.IsZero() {
			response.LastIndexed = last.Started.Format(time.RFC3339)
			response.FilesIndexed = last.Files
			response.IndexErrors = last.Errors
		}
		if last.Errors > 0 && response.Ready {
			response.Status = statusDegraded
		}
	}

	if h.monitor != nil {
		response.MemoryUsage = h.monitor.Usage()
		response.MemoryPaused = h.monitor.Paused()
		if response.MemoryPaused && response.Status == statusHealthy {
			response.Status = statusDegraded
		}
	}

	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, response)
}

// LivenessCheck is a simple liveness check (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the provider database answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
