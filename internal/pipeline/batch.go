package pipeline

import (
	"context"
	"sync"
	"time"

	"media-picker/internal/imageproc"
	"media-picker/internal/picker"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// Batch is a group of items processed by one worker in submission order.
// Items are owned by the worker until they finish; only finished items are
// exposed.
type Batch struct {
	ID       string
	Variant  Variant
	Location picker.Location
	Options  imageproc.Options
	Created  time.Time

	items []*picker.Item
	done  chan struct{}

	mu        sync.RWMutex
	status    BatchStatus
	started   time.Time
	finished  time.Time
	processed int
}

func newBatch(id string, variant Variant, loc picker.Location, opts imageproc.Options, items []*picker.Item) *Batch {
	return &Batch{
		ID:       id,
		Variant:  variant,
		Location: loc,
		Options:  opts,
		Created:  time.Now(),
		items:    items,
		done:     make(chan struct{}),
		status:   BatchQueued,
	}
}

// Done is closed when every item has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch completes or ctx is done.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the batch's current state.
func (b *Batch) Status() BatchStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// run processes every item with p and closes Done.
func (b *Batch) run(ctx context.Context, p *Pipeline) {
	b.mu.Lock()
	b.status = BatchRunning
	b.started = time.Now()
	b.mu.Unlock()

	for _, item := range b.items {
		p.Process(ctx, item)

		b.mu.Lock()
		b.processed++
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.status = BatchCompleted
	b.finished = time.Now()
	b.mu.Unlock()
	close(b.done)
}

// View is a point-in-time copy of a batch for callers outside the worker.
type View struct {
	ID        string            `json:"id"`
	Status    BatchStatus       `json:"status"`
	Variant   Variant           `json:"variant"`
	Location  picker.Location   `json:"location"`
	Options   imageproc.Options `json:"options"`
	Created   time.Time         `json:"created"`
	Started   *time.Time        `json:"started,omitempty"`
	Finished  *time.Time        `json:"finished,omitempty"`
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []picker.Item     `json:"items"`
}

// View returns a snapshot of the batch.
func (b *Batch) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		ID:        b.ID,
		Status:    b.status,
		Variant:   b.Variant,
		Location:  b.Location,
		Options:   b.Options,
		Created:   b.Created,
		Total:     len(b.items),
		Processed: b.processed,
		Items:     make([]picker.Item, 0, b.processed),
	}
	if !b.started.IsZero() {
		started := b.started
		v.Started = &started
	}
	if !b.finished.IsZero() {
		finished := b.finished
		v.Finished = &finished
	}

	for _, item := range b.items[:b.processed] {
		switch item.Outcome {
		case picker.OutcomeSucceeded:
			v.Succeeded++
		case picker.OutcomeFailed:
			v.Failed++
		}
		v.Items = append(v.Items, *item)
	}
	return v
}
