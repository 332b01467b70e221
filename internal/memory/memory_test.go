package memory

import (
	"context"
	"errors"
	"math"
	"os"
	"runtime/debug"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *atomic.Uint64) *Monitor {
	m := NewMonitor(Config{
		LimitBytes:        limit,
		HighWaterMark:     0.5,
		CriticalWaterMark: 0.8,
		CheckInterval:     time.Millisecond,
	})
	m.sample = alloc.Load
	return m
}

func TestMonitorPauseAndResume(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)

	alloc.Store(100)
	m.check()
	if m.Paused() {
		t.Fatal("paused at 10% usage")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait while running = %v", err)
	}

	alloc.Store(900)
	m.check()
	if !m.Paused() {
		t.Fatal("not paused at 90% usage")
	}
	if got := m.Usage(); got != 0.9 {
		t.Errorf("Usage = %v, want 0.9", got)
	}

	released := make(chan error, 1)
	go func() { released <- m.Wait(context.Background()) }()

	// Between the marks the monitor stays paused.
	alloc.Store(600)
	m.check()
	select {
	case err := <-released:
		t.Fatalf("Wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	alloc.Store(200)
	m.check()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Wait = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait not released after recovery")
	}
}

func TestMonitorWaitContextAndStop(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)
	alloc.Store(1000)
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}

	m.Stop()
	m.Stop()
	if err := m.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait after Stop = %v, want ErrStopped", err)
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	m := NewMonitor(Config{LimitBytes: 0})
	if m.limit == 0 {
		m.Start()
		defer m.Stop()
		if m.Usage() != 0 || m.Paused() {
			t.Error("monitor without limit should never pause")
		}
	}
}

func TestConfigureLimit(t *testing.T) {
	if os.Getenv("GOMEMLIMIT") != "" {
		t.Skip("GOMEMLIMIT set in the environment")
	}
	original := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(original)

	tests := []struct {
		name      string
		limit     int64
		ratio     float64
		wantSrc   string
		wantLimit int64
	}{
		{"unset", 0, 0.5, "none", 0},
		{"default ratio", 1000, 0, "MEMORY_LIMIT", 850},
		{"custom ratio", 1000, 0.5, "MEMORY_LIMIT", 500},
		{"ratio out of range", 1000, 1.5, "MEMORY_LIMIT", 850},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigureLimit(tt.limit, tt.ratio)
			if got.Source != tt.wantSrc || got.GoMemLimit != tt.wantLimit {
				t.Errorf("ConfigureLimit(%d, %v) = %+v", tt.limit, tt.ratio, got)
			}
			if tt.wantLimit > 0 && debug.SetMemoryLimit(-1) != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", debug.SetMemoryLimit(-1), tt.wantLimit)
			}
		})
	}
}

func TestConfigureLimitPrefersEnvironment(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(original)

	t.Setenv("GOMEMLIMIT", "512MiB")
	got := ConfigureLimit(1<<30, 0.5)
	if got.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", got.Source)
	}
	if original == math.MaxInt64 && got.Configured {
		t.Error("runtime limit was not changed, result should not claim it was configured")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:             "0 B",
		1023:          "1023 B",
		1024:          "1.0 KiB",
		1536:          "1.5 KiB",
		1 << 20:       "1.0 MiB",
		5 * (1 << 30): "5.0 GiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
