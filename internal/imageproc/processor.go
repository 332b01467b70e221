package imageproc

import (
	"context"
	"time"

	"media-picker/internal/logging"
	"media-picker/internal/metrics"
	"media-picker/internal/picker"
)

// Options selects the post-processing stages. A zero MaxWidth or MaxHeight
// leaves that axis unbounded; bounding runs when either is set.
type Options struct {
	MaxWidth    int  `json:"maxWidth,omitempty"`
	MaxHeight   int  `json:"maxHeight,omitempty"`
	Metadata    bool `json:"metadata,omitempty"`
	Thumbnails  bool `json:"thumbnails,omitempty"`
	Fingerprint bool `json:"fingerprint,omitempty"`
	UseVips     bool `json:"-"`
}

// Bounded reports whether a dimension bound is configured.
func (o Options) Bounded() bool {
	return o.MaxWidth > 0 || o.MaxHeight > 0
}

// Processor runs the image post-processing stages on materialized items.
type Processor struct {
	opts Options
}

// New creates a Processor.
func New(opts Options) *Processor {
	return &Processor{opts: opts}
}

type stage struct {
	name    string
	enabled bool
	run     func(*picker.Item) picker.Result
}

// PostProcess runs bounding, metadata extraction, thumbnail generation and
// fingerprinting on item, in that order, skipping disabled stages. Every
// result is recorded on the item and returned. Processing stops at the
// first fatal result.
func (p *Processor) PostProcess(ctx context.Context, item *picker.Item) []picker.Result {
	stages := []stage{
		{picker.StageBound, p.opts.Bounded(), p.bound},
		{picker.StageMetadata, p.opts.Metadata, p.extractMetadata},
		{picker.StageThumbnails, p.opts.Thumbnails, p.thumbnails},
		{picker.StageFingerprint, p.opts.Fingerprint, p.fingerprint},
	}

	var results []picker.Result
	for _, s := range stages {
		if !s.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			r := picker.Fatal(s.name, picker.Wrap(picker.ErrProcessing, s.name, item.ResolvedPath, err))
			results = append(results, item.Record(r))
			break
		}

		start := time.Now()
		r := s.run(item)
		metrics.PostProcessDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		metrics.PostProcessTotal.WithLabelValues(s.name, r.Status.String()).Inc()

		if r.Status == picker.StatusDegraded {
			logging.Warn("imageproc: %s: %s degraded: %v", item.QueryReference, s.name, r.Err)
		}
		results = append(results, item.Record(r))
		if r.IsFatal() {
			break
		}
	}
	return results
}
