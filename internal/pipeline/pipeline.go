package pipeline

import (
	"context"
	"fmt"
	"strings"

	"media-picker/internal/logging"
	"media-picker/internal/mediatypes"
	"media-picker/internal/metrics"
	"media-picker/internal/picker"
)

// Variant selects the post-processing a pipeline applies.
type Variant string

const (
	// VariantFile resolves and materializes only.
	VariantFile Variant = "file"
	// VariantImage additionally post-processes image items.
	VariantImage Variant = "image"
)

// ParseVariant maps a name onto a Variant. The empty string picks the
// variant matching kind.
func ParseVariant(s string, kind mediatypes.Kind) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if kind == mediatypes.KindImage {
			return VariantImage, nil
		}
		return VariantFile, nil
	case string(VariantFile):
		return VariantFile, nil
	case string(VariantImage):
		return VariantImage, nil
	default:
		return "", fmt.Errorf("unknown pipeline variant %q", s)
	}
}

// Resolver turns an item's reference into a local path.
type Resolver interface {
	Resolve(ctx context.Context, item *picker.Item) picker.Result
}

// Materializer copies a resolved item into managed storage.
type Materializer interface {
	Materialize(ctx context.Context, item *picker.Item) picker.Result
}

// PostProcessor runs the optional enrichment stages on a materialized item.
type PostProcessor interface {
	PostProcess(ctx context.Context, item *picker.Item) []picker.Result
}

// Pipeline runs items through resolution, materialization and, for the
// image variant, post-processing.
type Pipeline struct {
	resolver     Resolver
	materializer Materializer
	post         PostProcessor
	variant      Variant
	allowPath    func(string) bool
}

// New creates a pipeline. post may be nil, in which case the image variant
// behaves like the file variant.
func New(r Resolver, m Materializer, post PostProcessor, variant Variant) *Pipeline {
	if variant == "" {
		variant = VariantFile
	}
	return &Pipeline{resolver: r, materializer: m, post: post, variant: variant}
}

// Process runs one item to completion and records its outcome. Only a fatal
// stage result fails the item; degraded stages are logged and skipped past.
// An item that already has an outcome is returned untouched.
func (p *Pipeline) Process(ctx context.Context, item *picker.Item) picker.Outcome {
	if item.Terminal() {
		logging.Debug("pipeline: %s already %s", item.QueryReference, item.Outcome)
		return item.Outcome
	}

	outcome := p.process(ctx, item)
	item.Finish(outcome)
	metrics.ItemsTotal.WithLabelValues(outcome.String()).Inc()
	return outcome
}

func (p *Pipeline) process(ctx context.Context, item *picker.Item) picker.Outcome {
	if r := item.Record(p.resolver.Resolve(ctx, item)); r.IsFatal() {
		return failed(item, r)
	}

	if p.allowPath != nil && isLocal(item.ResolvedPath) && !p.allowPath(item.ResolvedPath) {
		r := item.Record(picker.Fatal(picker.StageResolve,
			picker.Wrap(picker.ErrProcessing, picker.StageResolve, item.ResolvedPath, picker.ErrForbidden)))
		return failed(item, r)
	}

	if r := item.Record(p.materializer.Materialize(ctx, item)); r.IsFatal() {
		return failed(item, r)
	}

	if p.postProcesses(item) {
		for _, r := range p.post.PostProcess(ctx, item) {
			if r.IsFatal() {
				return failed(item, r)
			}
		}
	}

	logging.Debug("pipeline: %s succeeded as %s", item.QueryReference, item.ResolvedPath)
	return picker.OutcomeSucceeded
}

func (p *Pipeline) postProcesses(item *picker.Item) bool {
	return p.variant == VariantImage && p.post != nil && item.Kind == mediatypes.KindImage
}

// isLocal reports whether p is a filesystem path rather than a URI.
func isLocal(p string) bool {
	return p != "" && !strings.Contains(p, "://") && !picker.IsContentURI(p)
}

func failed(item *picker.Item, r picker.Result) picker.Outcome {
	logging.Warn("pipeline: %s failed at %s: %v", item.QueryReference, r.Stage, r.Err)
	return picker.OutcomeFailed
}

// Run processes items sequentially in order. A failed item does not stop
// the items after it.
func (p *Pipeline) Run(ctx context.Context, items []*picker.Item) {
	for _, item := range items {
		p.Process(ctx, item)
	}
}
