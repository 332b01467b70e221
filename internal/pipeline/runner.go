package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-picker/internal/imageproc"
	"media-picker/internal/logging"
	"media-picker/internal/materializer"
	"media-picker/internal/mediatypes"
	"media-picker/internal/metrics"
	"media-picker/internal/picker"
	"media-picker/internal/resolver"
	"media-picker/internal/workers"
)

// Completed batches kept for lookup before the oldest are dropped.
const defaultRetainedBatches = 256

// ErrNoReferences is returned for a request without references.
var ErrNoReferences = errors.New("batch has no references")

// ErrShuttingDown is returned by Submit after Shutdown.
var ErrShuttingDown = errors.New("runner is shutting down")

// Request describes a batch to run.
type Request struct {
	References    []string          `json:"references"`
	Kind          string            `json:"kind,omitempty"`
	Location      string            `json:"location,omitempty"`
	DirectoryType string            `json:"directoryType,omitempty"`
	Variant       string            `json:"variant,omitempty"`
	Options       imageproc.Options `json:"options"`
}

// Throttle holds back batch starts, e.g. under memory pressure.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Deps are the collaborators every pipeline is built from. Provider
// capabilities left nil disable the resolution strategies that need them.
type Deps struct {
	Storage     materializer.Directories
	Querier     resolver.Querier
	Documents   resolver.Documents
	Streams     resolver.StreamOpener
	HTTPClient  *http.Client
	HTTPTimeout time.Duration
	UseVips     bool
	Throttle    Throttle

	// AllowPath, when set, fails items whose resolved local path it
	// rejects before anything is read from that path.
	AllowPath func(path string) bool
}

// Build wires a pipeline storing into loc.
func (d Deps) Build(loc picker.Location, variant Variant, opts imageproc.Options) *Pipeline {
	m := materializer.New(d.Storage, loc)
	r := resolver.New(resolver.Config{
		Querier:     d.Querier,
		Documents:   d.Documents,
		Streams:     d.Streams,
		Namer:       m,
		HTTPClient:  d.HTTPClient,
		HTTPTimeout: d.HTTPTimeout,
	})

	var post PostProcessor
	if variant == VariantImage {
		opts.UseVips = d.UseVips
		post = imageproc.New(opts)
	}
	p := New(r, m, post, variant)
	p.allowPath = d.AllowPath
	return p
}

// Runner runs submitted batches, each on its own goroutine, with a bound on
// how many run at once. Items within a batch run sequentially.
type Runner struct {
	deps    Deps
	limiter *workers.Limiter

	mu       sync.RWMutex
	batches  map[string]*Batch
	order    []string
	retained int
	closed   bool

	wg sync.WaitGroup
}

// NewRunner creates a runner allowing concurrency batches at once.
func NewRunner(deps Deps, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = workers.ForIO(8)
	}
	logging.Debug("pipeline: running up to %d batches at once", concurrency)
	return &Runner{
		deps:     deps,
		limiter:  workers.NewLimiter(concurrency),
		batches:  make(map[string]*Batch),
		retained: defaultRetainedBatches,
	}
}

// Submit validates req and starts its batch in the background.
func (r *Runner) Submit(req Request) (*Batch, error) {
	refs := make([]string, 0, len(req.References))
	for _, ref := range req.References {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, ErrNoReferences
	}

	loc, err := picker.ParseLocation(req.Location)
	if err != nil {
		return nil, err
	}
	kind := mediatypes.ParseKind(req.Kind)
	variant, err := ParseVariant(req.Variant, kind)
	if err != nil {
		return nil, err
	}

	items := make([]*picker.Item, len(refs))
	for i, ref := range refs {
		items[i] = picker.NewItem(ref, kind)
		items[i].DirectoryType = req.DirectoryType
	}

	b := newBatch(uuid.NewString(), variant, loc, req.Options, items)
	p := r.deps.Build(loc, variant, req.Options)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	r.batches[b.ID] = b
	r.order = append(r.order, b.ID)
	r.evictLocked()
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(b, p)

	logging.Info("pipeline: batch %s queued with %d %s items (%s)", b.ID, len(items), kind, variant)
	return b, nil
}

// Run submits req and waits for its batch to complete.
func (r *Runner) Run(ctx context.Context, req Request) (*Batch, error) {
	b, err := r.Submit(req)
	if err != nil {
		return nil, err
	}
	if err := b.Wait(ctx); err != nil {
		return b, fmt.Errorf("batch %s: %w", b.ID, err)
	}
	return b, nil
}

// run executes b once a slot is free. Batches are not cancellable once
// started, so the pipeline gets a context that is never cancelled.
func (r *Runner) run(b *Batch, p *Pipeline) {
	defer r.wg.Done()

	ctx := context.Background()
	if err := r.limiter.Acquire(ctx); err != nil {
		return
	}
	defer r.limiter.Release()

	if r.deps.Throttle != nil {
		if err := r.deps.Throttle.Wait(ctx); err != nil {
			logging.Warn("pipeline: batch %s starting without throttle: %v", b.ID, err)
		}
	}

	metrics.BatchesRunning.Inc()
	defer metrics.BatchesRunning.Dec()

	start := time.Now()
	b.run(ctx, p)
	duration := time.Since(start)
	metrics.BatchDuration.Observe(duration.Seconds())

	v := b.View()
	logging.Info("pipeline: batch %s completed in %v: %d succeeded, %d failed",
		b.ID, duration, v.Succeeded, v.Failed)
}

// Get returns the batch with id.
func (r *Runner) Get(id string) (*Batch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	return b, ok
}

// List returns views of the retained batches, newest first.
func (r *Runner) List() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]View, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		views = append(views, r.batches[r.order[i]].View())
	}
	return views
}

// Running returns the number of batches holding a worker slot.
func (r *Runner) Running() int {
	return r.limiter.InUse()
}

// evictLocked drops the oldest completed batches beyond the retention limit.
func (r *Runner) evictLocked() {
	for len(r.order) > r.retained {
		evicted := false
		for i, id := range r.order {
			if r.batches[id].Status() == BatchCompleted {
				delete(r.batches, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// Shutdown stops accepting batches and waits for running ones to finish.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
