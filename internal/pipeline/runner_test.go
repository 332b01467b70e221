package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-picker/internal/imageproc"
	"media-picker/internal/picker"
	"media-picker/internal/storage"
)

func imageprocOptions() imageproc.Options {
	return imageproc.Options{}
}

func newTestDeps(t *testing.T) (Deps, storage.Dirs) {
	t.Helper()
	root := t.TempDir()
	dirs := storage.Dirs{
		ExternalApp:   filepath.Join(root, "external"),
		ExternalCache: filepath.Join(root, "cache"),
		InternalApp:   filepath.Join(root, "internal"),
	}
	return Deps{Storage: storage.New(dirs)}, dirs
}

func TestRunnerSubmitValidation(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRunner(deps, 1)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no references", Request{}, ErrNoReferences},
		{"blank references", Request{References: []string{" ", ""}}, ErrNoReferences},
	}
	for _, tt := range tests {
		if _, err := r.Submit(tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: Submit = %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := r.Submit(Request{References: []string{"/a"}, Location: "moon"}); err == nil {
		t.Error("expected error for unknown location")
	}
	if _, err := r.Submit(Request{References: []string{"/a"}, Variant: "audio"}); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestRunnerRunsLocalFiles(t *testing.T) {
	deps, dirs := newTestDeps(t)
	r := NewRunner(deps, 2)

	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := r.Run(ctx, Request{
		References:    []string{src, filepath.Join(t.TempDir(), "missing.txt")},
		Kind:          "file",
		Location:      "internal-app",
		DirectoryType: "Documents",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	items := b.View().Items
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	ok := items[0]
	if ok.Outcome != picker.OutcomeSucceeded {
		t.Fatalf("first item failed: %+v", ok.Results)
	}
	if want := filepath.Join(dirs.InternalApp, "notes.txt"); ok.ResolvedPath != want {
		t.Errorf("ResolvedPath = %q, want %q", ok.ResolvedPath, want)
	}
	if ok.SizeBytes != 5 || ok.MimeType != "text/plain" || ok.Extension != "txt" {
		t.Errorf("size=%d mime=%q ext=%q", ok.SizeBytes, ok.MimeType, ok.Extension)
	}

	if items[1].Outcome != picker.OutcomeFailed {
		t.Errorf("missing file outcome = %v, want failed", items[1].Outcome)
	}

	got, found := r.Get(b.ID)
	if !found || got != b {
		t.Errorf("Get(%s) = %v, %v", b.ID, got, found)
	}
	if views := r.List(); len(views) != 1 || views[0].ID != b.ID {
		t.Errorf("List() = %+v", views)
	}
}

func TestRunnerEvictsCompletedBatches(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRunner(deps, 1)
	r.retained = 2

	src := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(src, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		b, err := r.Run(ctx, Request{References: []string{src}, Location: "internal-app"})
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		ids = append(ids, b.ID)
	}

	if _, ok := r.Get(ids[0]); ok {
		t.Error("oldest batch was not evicted")
	}
	for _, id := range ids[1:] {
		if _, ok := r.Get(id); !ok {
			t.Errorf("batch %s evicted too early", id)
		}
	}
}

func TestRunnerShutdown(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRunner(deps, 1)

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := r.Submit(Request{References: []string{"/a"}}); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Submit after Shutdown = %v, want ErrShuttingDown", err)
	}
}

type gate struct {
	release chan struct{}
	waited  chan struct{}
}

func (g *gate) Wait(ctx context.Context) error {
	close(g.waited)
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRunnerWaitsForThrottle(t *testing.T) {
	deps, _ := newTestDeps(t)
	g := &gate{release: make(chan struct{}), waited: make(chan struct{})}
	deps.Throttle = g
	r := NewRunner(deps, 1)

	src := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(src, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := r.Submit(Request{References: []string{src}, Location: "internal-app"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-g.waited:
	case <-time.After(5 * time.Second):
		t.Fatal("runner never consulted the throttle")
	}
	if s := b.Status(); s != BatchQueued {
		t.Errorf("status while throttled = %q, want %q", s, BatchQueued)
	}

	close(g.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if b.Status() != BatchCompleted {
		t.Errorf("status = %q, want completed", b.Status())
	}
}
