// Package pipeline runs picked references through resolution,
// materialization and post-processing.
//
// A Runner gives every submitted batch its own goroutine; items within a
// batch are processed one after another in submission order, and each
// item's outcome is independent of the others. Completion is signalled by
// closing Batch.Done. Once started a batch always runs to completion.
package pipeline
