package picker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status classifies how a stage ended.
type Status int

const (
	// StatusDone means the stage ran and changed the item.
	StatusDone Status = iota
	// StatusSkipped means the stage had nothing to do.
	StatusSkipped
	// StatusDegraded means the stage failed but the item continues.
	StatusDegraded
	// StatusFatal means the item cannot continue.
	StatusFatal
)

// String returns the status name used in logs, metrics and JSON.
func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSkipped:
		return "skipped"
	case StatusDegraded:
		return "degraded"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Stage names.
const (
	StageResolve     = "resolve"
	StageMaterialize = "materialize"
	StageBound       = "bound"
	StageMetadata    = "metadata"
	StageThumbnails  = "thumbnails"
	StageFingerprint = "fingerprint"
)

// Result is the outcome of one stage for one item.
type Result struct {
	Stage  string
	Status Status
	Err    error
}

// Done builds a StatusDone result.
func Done(stage string) Result { return Result{Stage: stage, Status: StatusDone} }

// Skipped builds a StatusSkipped result.
func Skipped(stage string) Result { return Result{Stage: stage, Status: StatusSkipped} }

// Degraded builds a StatusDegraded result carrying err.
func Degraded(stage string, err error) Result {
	return Result{Stage: stage, Status: StatusDegraded, Err: err}
}

// Fatal builds a StatusFatal result carrying err.
func Fatal(stage string, err error) Result {
	return Result{Stage: stage, Status: StatusFatal, Err: err}
}

// IsFatal reports whether the result ends the item.
func (r Result) IsFatal() bool { return r.Status == StatusFatal }

type resultJSON struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// MarshalJSON flattens the error into a string.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Stage: r.Stage, Status: r.Status.String()}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result written by MarshalJSON. The error comes
// back as plain text, so errors.Is no longer matches the markers.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	status, ok := parseStatus(in.Status)
	if !ok {
		return fmt.Errorf("invalid result status %q", in.Status)
	}
	*r = Result{Stage: in.Stage, Status: status}
	if in.Error != "" {
		r.Err = errors.New(in.Error)
	}
	return nil
}

func parseStatus(s string) (Status, bool) {
	for st := StatusDone; st <= StatusFatal; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}
