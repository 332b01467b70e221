package filesystem

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failures int
	stale    int
	ops      []string
}

func (o *recordingObserver) ObserveOperation(volume, operation string, _ float64, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, volume+":"+operation)
}
func (o *recordingObserver) ObserveRetryAttempt(string, string) { o.mu.Lock(); o.attempts++; o.mu.Unlock() }
func (o *recordingObserver) ObserveRetrySuccess(string, string) { o.mu.Lock(); o.success++; o.mu.Unlock() }
func (o *recordingObserver) ObserveRetryFailure(string, string) { o.mu.Lock(); o.failures++; o.mu.Unlock() }
func (o *recordingObserver) ObserveRetryDuration(string, string, float64) {}
func (o *recordingObserver) ObserveStaleError(string, string)             { o.mu.Lock(); o.stale++; o.mu.Unlock() }

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	original := defaultObserver
	t.Cleanup(func() { defaultObserver = original })
	obs := &recordingObserver{}
	SetObserver(obs)
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"external-app":   "/data/external",
		"external-cache": "/data/cache",
		"media":          "/media",
		"ignored":        "",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"media root", "/media", "media"},
		{"media file", "/media/photos/image.jpg", "media"},
		{"external app pictures", "/data/external/Pictures/a.jpg", "external-app"},
		{"cache file", "/data/cache/blob", "external-cache"},
		{"sibling prefix does not match", "/data/cachefoo/blob", "unknown"},
		{"unknown path", "/etc/hosts", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"external-app": "/data/external",
		"pictures":     "/data/external/Pictures",
	})

	if got := vr.Resolve("/data/external/Movies/a.mp4"); got != "external-app" {
		t.Errorf("Resolve(movies) = %q, want external-app", got)
	}
	if got := vr.Resolve("/data/external/Pictures/a.jpg"); got != "pictures" {
		t.Errorf("Resolve(pictures) = %q, want pictures", got)
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/media/test.jpg"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want %q", got, "unknown")
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"default-media": "/media"}))

	config := fastConfig()
	if got := config.resolveVolume("/media/test.jpg"); got != "default-media" {
		t.Errorf("resolveVolume() = %q, want default-media", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"override-media": "/media"})
	if got := config.resolveVolume("/media/test.jpg"); got != "override-media" {
		t.Errorf("resolveVolume() = %q, want override-media", got)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("stat", "/media/a.jpg", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 || obs.failures != 0 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("open", "/media/a.jpg", fastConfig(), func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("expected ESTALE, got %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if obs.failures != 1 || obs.attempts != 3 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestWithRetry_NonStaleFailsFast(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("stat", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})

	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(obs.ops) != 1 || !strings.HasSuffix(obs.ops[0], ":stat") {
		t.Errorf("ops = %v, want one stat operation", obs.ops)
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("test content")
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != int64(len(content)) {
		t.Errorf("Size() = %d, want %d", info.Size(), len(content))
	}

	file, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer file.Close()

	buf := make([]byte, len(content))
	if _, err := file.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, content) {
		t.Errorf("content = %q, want %q", buf, content)
	}

	if _, err := StatWithRetry(filepath.Join(tmpDir, "missing"), fastConfig()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()
	present := filepath.Join(tmpDir, "present")
	if err := os.WriteFile(present, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		want    bool
		wantErr bool
	}{
		{"file", present, true, false},
		{"dir", tmpDir, true, false},
		{"absent", filepath.Join(tmpDir, "absent"), false, false},
		{"nul byte", filepath.Join(tmpDir, "a\x00b"), false, true},
		{"name too long", filepath.Join(tmpDir, strings.Repeat("n", 300)), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Exists(tt.path)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("Exists() = %v, %v; want %v, error %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string]string{
		"media":          "/media",
		"external-cache": "/data/cache",
		"external-app":   "/data/external",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vr.Resolve("/media/photos/vacation/img_001.jpg")
	}
}
