package picker

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Stage errors wrap exactly one of these so callers can
// classify them with errors.Is.
var (
	// ErrResolution marks a resolution strategy that did not produce a path.
	ErrResolution = errors.New("resolution failure")
	// ErrProcessing marks a failure that ends the item.
	ErrProcessing = errors.New("processing failure")
	// ErrMetadata marks a metadata extraction failure.
	ErrMetadata = errors.New("metadata extraction failure")
	// ErrBounding marks a dimension bounding failure.
	ErrBounding = errors.New("dimension bounding failure")
)

// Conditions wrapped together with a marker.
var (
	// ErrUnresolved means the item still points at a content URI.
	ErrUnresolved = errors.New("reference is still a content uri")
	// ErrNoLocation means the target directory could not be determined.
	ErrNoLocation = errors.New("target directory unavailable")
	// ErrForbidden means the resolved path lies outside the readable roots.
	ErrForbidden = errors.New("path outside allowed roots")
)

// Wrap tags err with marker and the stage/operation that produced it.
func Wrap(marker error, stage, operation string, err error) error {
	parts := make([]string, 0, 2)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "pipeline"
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}
