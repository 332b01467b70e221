package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"media-picker/internal/filesystem"
	"media-picker/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write exceeded the configured timeout,
	// typically because the client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the request context ended before the
	// response was complete.
	ErrClientGone = errors.New("client disconnected")
)

// Config bounds how long a slow client may hold a file response.
type Config struct {
	// WriteTimeout is the deadline for each write to the connection
	// (0 = no deadline).
	WriteTimeout time.Duration
	// MaxDuration is the absolute maximum response duration (0 = unlimited).
	MaxDuration time.Duration
}

// DefaultConfig returns the limits used by the API.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		MaxDuration:  0,
	}
}

// deadlineWriter renews the connection write deadline before every write
// and remembers the first failure, which http.ServeContent discards.
type deadlineWriter struct {
	http.ResponseWriter
	ctx     context.Context
	rc      *http.ResponseController
	config  Config
	started time.Time
	written int64
	err     error
}

func newDeadlineWriter(ctx context.Context, w http.ResponseWriter, config Config) *deadlineWriter {
	return &deadlineWriter{
		ResponseWriter: w,
		ctx:            ctx,
		rc:             http.NewResponseController(w),
		config:         config,
		started:        time.Now(),
	}
}

func (dw *deadlineWriter) Write(p []byte) (int, error) {
	if dw.err != nil {
		return 0, dw.err
	}
	if dw.ctx.Err() != nil {
		dw.err = ErrClientGone
		return 0, dw.err
	}
	if dw.config.MaxDuration > 0 && time.Since(dw.started) > dw.config.MaxDuration {
		dw.err = ErrWriteTimeout
		return 0, dw.err
	}

	if dw.config.WriteTimeout > 0 {
		err := dw.rc.SetWriteDeadline(time.Now().Add(dw.config.WriteTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Could not set write deadline: %v", err)
		}
	}

	n, err := dw.ResponseWriter.Write(p)
	dw.written += int64(n)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			dw.err = ErrWriteTimeout
		case dw.ctx.Err() != nil:
			dw.err = ErrClientGone
		default:
			dw.err = err
		}
	}
	return n, dw.err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (dw *deadlineWriter) Unwrap() http.ResponseWriter {
	return dw.ResponseWriter
}

// ServeFile streams the file at path as mimeType. Range and conditional
// requests are honoured. A missing file answers 404 and returns the
// underlying error; a stalled or departed client ends the response with
// ErrWriteTimeout or ErrClientGone.
func ServeFile(w http.ResponseWriter, r *http.Request, path, mimeType string, config Config) error {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		http.Error(w, "file not available", http.StatusNotFound)
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Debug("close %s: %v", path, err)
		}
	}()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "file not available", http.StatusNotFound)
		if err == nil {
			err = fmt.Errorf("%s is a directory", path)
		}
		return err
	}

	if mimeType != "" {
		w.Header().Set("Content-Type", mimeType)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(path)))

	dw := newDeadlineWriter(r.Context(), w, config)
	http.ServeContent(dw, r, info.Name(), info.ModTime(), f)

	// clear the deadline so keep-alive requests start fresh
	if config.WriteTimeout > 0 {
		if err := dw.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Could not clear write deadline: %v", err)
		}
	}

	logging.Debug("Served %s: %d bytes in %v", path, dw.written, time.Since(dw.started))
	return dw.err
}
