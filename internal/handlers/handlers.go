package handlers

import (
	"time"

	"media-picker/internal/imageproc"
	"media-picker/internal/memory"
	"media-picker/internal/picker"
	"media-picker/internal/pipeline"
	"media-picker/internal/provider"
	"media-picker/internal/streaming"
)

// Defaults fill in the parts of a batch request the client leaves out.
type Defaults struct {
	Location picker.Location
	Options  imageproc.Options

	// AllowPath, when set, limits the files grants may register.
	AllowPath func(path string) bool
}

type Handlers struct {
	runner       *pipeline.Runner
	store        *provider.Store
	indexer      *provider.Indexer
	monitor      *memory.Monitor
	defaults     Defaults
	streamConfig streaming.Config
	started      time.Time
}

// New creates the API handlers. idx may be nil when indexing is disabled.
func New(runner *pipeline.Runner, store *provider.Store, idx *provider.Indexer, defaults Defaults) *Handlers {
	return &Handlers{
		runner:       runner,
		store:        store,
		indexer:      idx,
		defaults:     defaults,
		streamConfig: streaming.DefaultConfig(),
		started:      time.Now(),
	}
}

// WithMonitor reports m's memory pressure in the health output.
func (h *Handlers) WithMonitor(m *memory.Monitor) *Handlers {
	h.monitor = m
	return h
}
