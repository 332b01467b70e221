package picker

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"media-picker/internal/mediatypes"
)

func TestSetResolvedPathNeverRegresses(t *testing.T) {
	item := NewItem("content://media/external/images/media/1", mediatypes.KindImage)

	if !item.SetResolvedPath("content://com.google.android.gallery3d.provider/x") {
		t.Fatal("expected content-to-content rewrite to be accepted")
	}
	if !item.SetResolvedPath("/data/Pictures/a.jpg") {
		t.Fatal("expected content-to-file resolution to be accepted")
	}
	if item.SetResolvedPath("content://media/external/images/media/1") {
		t.Error("expected file-to-content regression to be rejected")
	}
	if item.ResolvedPath != "/data/Pictures/a.jpg" {
		t.Errorf("ResolvedPath = %q", item.ResolvedPath)
	}
	if item.SetResolvedPath("") {
		t.Error("empty path must be ignored")
	}
	if !item.Resolved() {
		t.Error("expected item to be resolved")
	}
}

func TestSetMimeTypePrecedence(t *testing.T) {
	item := NewItem("/a", mediatypes.KindImage)

	item.SetMimeType("image/*")
	if item.MimeType != "image/*" {
		t.Fatalf("MimeType = %q", item.MimeType)
	}
	item.SetMimeType("image/png")
	if item.MimeType != "image/png" {
		t.Fatalf("MimeType = %q, want image/png", item.MimeType)
	}
	item.SetMimeType("image/*")
	if item.MimeType != "image/png" {
		t.Errorf("wildcard overwrote concrete type: %q", item.MimeType)
	}
}

func TestFinishOnlyOnce(t *testing.T) {
	item := NewItem("/a", "")
	if item.Kind != mediatypes.KindFile {
		t.Errorf("default kind = %q", item.Kind)
	}
	if item.Finish(OutcomePending) {
		t.Error("pending is not a terminal outcome")
	}
	if !item.Finish(OutcomeFailed) {
		t.Fatal("first Finish should apply")
	}
	if item.Finish(OutcomeSucceeded) {
		t.Error("second Finish should be ignored")
	}
	if item.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", item.Outcome)
	}
}

func TestOutcomeJSON(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomePending, "null"},
		{OutcomeSucceeded, "true"},
		{OutcomeFailed, "false"},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.outcome)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.outcome, data, tt.want)
		}
		var back Outcome
		if err := json.Unmarshal(data, &back); err != nil || back != tt.outcome {
			t.Errorf("Unmarshal(%s) = %v, %v", data, back, err)
		}
	}

	var o Outcome
	if err := json.Unmarshal([]byte(`"yes"`), &o); err == nil {
		t.Error("expected error for invalid outcome")
	}
}

func TestWrapClassification(t *testing.T) {
	err := Wrap(ErrProcessing, StageMaterialize, "copy", io.ErrUnexpectedEOF)
	if !errors.Is(err, ErrProcessing) {
		t.Error("expected ErrProcessing marker")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected cause to be preserved")
	}
	if errors.Is(err, ErrMetadata) {
		t.Error("unexpected ErrMetadata marker")
	}
	if !strings.Contains(err.Error(), "materialize: copy") {
		t.Errorf("error text missing detail: %q", err.Error())
	}

	bare := Wrap(ErrBounding, "", "", nil)
	if bare.Error() != "dimension bounding failure: pipeline" {
		t.Errorf("bare error = %q", bare.Error())
	}
}

func TestResultJSON(t *testing.T) {
	r := Fatal(StageThumbnails, errors.New("boom"))
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"stage":"thumbnails","status":"fatal","error":"boom"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
	if !r.IsFatal() || Degraded(StageMetadata, nil).IsFatal() {
		t.Error("IsFatal mismatch")
	}
}

func TestResultUnmarshal(t *testing.T) {
	var r Result
	if err := json.Unmarshal([]byte(`{"stage":"bound","status":"degraded","error":"too big"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Stage != StageBound || r.Status != StatusDegraded || r.Err == nil || r.Err.Error() != "too big" {
		t.Errorf("got %+v", r)
	}

	if err := json.Unmarshal([]byte(`{"stage":"bound","status":"done"}`), &r); err != nil || r.Err != nil {
		t.Errorf("done result = %+v, %v", r, err)
	}
	if err := json.Unmarshal([]byte(`{"stage":"bound","status":"exploded"}`), &r); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{"", LocationExternalApp, false},
		{"external-cache", LocationExternalCache, false},
		{"INTERNAL-APP", LocationInternalApp, false},
		{"sdcard", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocation(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
