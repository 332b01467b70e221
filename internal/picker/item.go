package picker

import (
	"fmt"
	"strings"
	"time"

	"media-picker/internal/mediatypes"
)

// ContentScheme is the prefix of provider-mediated references.
const ContentScheme = "content:"

// IsContentURI reports whether ref still points at a content provider.
func IsContentURI(ref string) bool {
	return strings.HasPrefix(ref, ContentScheme)
}

// Outcome is the terminal state of an item. The zero value means the item
// has not finished its pipeline run yet.
type Outcome int8

const (
	// OutcomePending means the item has not been processed.
	OutcomePending Outcome = iota
	// OutcomeSucceeded means every fatal stage passed.
	OutcomeSucceeded
	// OutcomeFailed means a processing failure ended the item's run.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// MarshalJSON encodes the outcome as true, false or null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o {
	case OutcomeSucceeded:
		return []byte("true"), nil
	case OutcomeFailed:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*o = OutcomeSucceeded
	case "false":
		*o = OutcomeFailed
	case "null":
		*o = OutcomePending
	default:
		return fmt.Errorf("invalid outcome %s", data)
	}
	return nil
}

// Item is one picked reference and everything learned about it while it
// moves through resolution, materialization and post-processing.
//
// The pipeline that runs an item owns it exclusively until Outcome is set.
type Item struct {
	QueryReference string          `json:"queryReference"`
	ResolvedPath   string          `json:"resolvedPath"`
	OriginalFile   string          `json:"originalFile,omitempty"`
	DisplayName    string          `json:"displayName,omitempty"`
	MimeType       string          `json:"mimeType,omitempty"`
	Extension      string          `json:"extension,omitempty"`
	Kind           mediatypes.Kind `json:"kind"`
	DirectoryType  string          `json:"directoryType,omitempty"`

	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`

	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Orientation int     `json:"orientation,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	HasLocation bool    `json:"hasLocation,omitempty"`

	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	Fingerprint   string `json:"fingerprint,omitempty"`

	Outcome Outcome  `json:"succeeded"`
	Results []Result `json:"results,omitempty"`
}

// NewItem creates an item for ref. The resolved path starts out as the
// reference itself.
func NewItem(ref string, kind mediatypes.Kind) *Item {
	if kind == "" {
		kind = mediatypes.KindFile
	}
	return &Item{
		QueryReference: ref,
		ResolvedPath:   ref,
		Kind:           kind,
	}
}

// SetResolvedPath moves the item to p. A content reference never replaces a
// path that has already left the content scheme, and empty paths are ignored.
// It reports whether the path changed.
func (it *Item) SetResolvedPath(p string) bool {
	if p == "" || p == it.ResolvedPath {
		return false
	}
	if IsContentURI(p) && !IsContentURI(it.ResolvedPath) {
		return false
	}
	it.ResolvedPath = p
	return true
}

// SetMimeType offers a MIME type for the item; see mediatypes.Prefer.
func (it *Item) SetMimeType(m string) {
	it.MimeType = mediatypes.Prefer(it.MimeType, m)
}

// Resolved reports whether the item points at something other than a
// content URI.
func (it *Item) Resolved() bool {
	return !IsContentURI(it.ResolvedPath)
}

// Terminal reports whether the item has an outcome.
func (it *Item) Terminal() bool {
	return it.Outcome != OutcomePending
}

// Finish records the outcome. Only the first call has any effect.
func (it *Item) Finish(o Outcome) bool {
	if it.Terminal() || o == OutcomePending {
		return false
	}
	it.Outcome = o
	return true
}

// Record appends a stage result to the item's trail.
func (it *Item) Record(r Result) Result {
	it.Results = append(it.Results, r)
	return r
}
