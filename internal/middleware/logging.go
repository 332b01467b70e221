package middleware

import (
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// w3cFields is the #Fields directive for the access log. x-batch and x-item
// carry the batch id and item index a request touched.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken x-batch x-item sc(Content-Type) cs(User-Agent)"

// LoggingConfig controls the access log.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths       []string
	LogHealthChecks bool
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP instead of the connection.
	TrustProxy bool
	// Output receives the log; nil means stderr.
	Output io.Writer
}

// DefaultLoggingConfig returns the configuration used by the service.
// The metrics endpoint is scraped too often to be worth logging.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

// accessLog writes one W3C extended log line per request, preceded once by
// the #Software and #Fields directives.
type accessLog struct {
	config LoggingConfig
	out    *log.Logger
	header sync.Once
}

func newAccessLog(config LoggingConfig) *accessLog {
	w := config.Output
	if w == nil {
		w = os.Stderr
	}
	return &accessLog{config: config, out: log.New(w, "", 0)}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger returns middleware writing the access log.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	al := newAccessLog(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if al.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)
			al.write(r, rec, time.Since(start))
		})
	}
}

func (al *accessLog) skip(path string) bool {
	for _, prefix := range al.config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !al.config.LogHealthChecks && healthCheckPaths[path]
}

func (al *accessLog) write(r *http.Request, rec *recorder, took time.Duration) {
	al.header.Do(func() {
		al.out.Println("#Software: media-picker")
		al.out.Println("#Fields: " + w3cFields)
	})

	now := time.Now().UTC()
	batch, item := batchRef(r.URL.Path)
	if batch == "-" && r.Method == http.MethodPost {
		// A new batch is only named by the response.
		batch, _ = batchRef(rec.Header().Get("Location"))
	}

	//nolint:gosec // request-controlled fields go through field()
	al.out.Printf("%s %s %s %s %s %s %d %d %d %s %s %s %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		field(clientIP(r, al.config.TrustProxy)),
		field(r.Method),
		field(r.URL.Path),
		field(r.URL.RawQuery),
		rec.status,
		rec.bytes,
		took.Milliseconds(),
		field(batch),
		field(item),
		field(rec.Header().Get("Content-Type")),
		field(r.Header.Get("User-Agent")),
	)
}

// batchRef extracts the batch id and item index from a batch API path.
// Missing parts are "-".
func batchRef(path string) (batch, item string) {
	batch, item = "-", "-"
	rest, ok := strings.CutPrefix(path, "/api/batches/")
	if !ok || rest == "" {
		return batch, item
	}
	parts := strings.Split(rest, "/")
	batch = parts[0]
	if len(parts) >= 3 && parts[1] == "items" && parts[2] != "" {
		item = parts[2]
	}
	return batch, item
}

// field prepares a value for one W3C column: control characters are dropped
// or turned into spaces, values with blanks or quotes are quoted, and empty
// values become "-".
func field(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r < 0x20 && r != '\t', r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	switch {
	case s == "":
		return "-"
	case strings.ContainsAny(s, " \t\""):
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	default:
		return s
	}
}

// clientIP returns the connection's address, or the first forwarded address
// when proxy headers are trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
