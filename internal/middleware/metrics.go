package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-picker/internal/metrics"
)

// MetricsConfig controls the request metrics middleware.
type MetricsConfig struct {
	// SkipPaths are path prefixes that are not recorded.
	SkipPaths []string
}

// DefaultMetricsConfig skips the scrape endpoint and the health checks.
func DefaultMetricsConfig() MetricsConfig {
	skip := []string{"/metrics"}
	for p := range healthCheckPaths {
		skip = append(skip, p)
	}
	return MetricsConfig{SkipPaths: skip}
}

// Metrics returns middleware recording request counts, latencies and
// response sizes per route.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			rec := newRecorder(w)
			start := time.Now()
			next.ServeHTTP(rec, r)

			route := routeLabel(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseBytes.WithLabelValues(route).Add(float64(rec.bytes))
		})
	}
}

// providerRoutes are the second path segments under /api/provider.
var providerRoutes = map[string]bool{"scan": true, "media": true, "grants": true}

// routeLabel maps a request path onto its route template so the label set
// stays bounded. Batch ids become {id}, item indexes {index}, and paths no
// route serves collapse to {other}.
func routeLabel(path string) string {
	if healthCheckPaths[path] || path == "/version" {
		return path
	}
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return "{other}"
	}

	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	switch {
	case parts[0] == "batches" && len(parts) == 1:
		return "/api/batches"
	case parts[0] == "batches" && len(parts) == 2:
		return "/api/batches/{id}"
	case parts[0] == "batches" && len(parts) == 5 && parts[2] == "items" && parts[4] == "content":
		return "/api/batches/{id}/items/{index}/content"
	case parts[0] == "provider" && len(parts) == 2 && providerRoutes[parts[1]]:
		return "/api/provider/" + parts[1]
	}
	return "/api/{other}"
}
