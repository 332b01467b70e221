// Package startup loads configuration and writes the startup and shutdown
// log sections.
//
// # Configuration
//
// [LoadConfig] reads every setting from the environment. When PICKER_CONFIG
// names a TOML file, its top-level keys (the lower-cased variable names)
// fill in anything the environment leaves unset:
//
//	# /etc/media-picker.toml
//	storage_location = "external-cache"
//	max_image_width = 2048
//	max_image_height = 2048
//	generate_thumbnails = true
//	http_timeout = "30s"
//
// Supported settings:
//
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics port (default: 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - DATA_DIR: holds provider.db and the default storage dirs (default: /data)
//   - EXTERNAL_APP_DIR, EXTERNAL_CACHE_DIR, INTERNAL_APP_DIR: storage
//     location roots (default: under DATA_DIR)
//   - MEDIA_DIR: directory indexed into the provider (default: unset)
//   - STORAGE_LOCATION: external-app, external-cache or internal-app
//   - MAX_IMAGE_WIDTH, MAX_IMAGE_HEIGHT: bounding box, 0 disables (default: 0)
//   - GENERATE_METADATA (true), GENERATE_THUMBNAILS (false),
//     GENERATE_FINGERPRINT (false): default post-processing stages
//   - VIPS_ENABLED: decode thumbnails through libvips (default: false)
//   - HTTP_TIMEOUT: download timeout, 0 means none (default: 0)
//   - ALLOW_PRIVATE_NETWORKS: let the server download from loopback,
//     private and link-local addresses (default: false)
//   - BATCH_WORKERS: batches running at once (default: derived from CPUs)
//   - INDEX_INTERVAL: re-index period, 0 indexes once (default: 30m)
//   - INDEX_WORKERS: indexer walk workers (default: derived from CPUs)
//   - MEMORY_LIMIT, MEMORY_RATIO: GOMEMLIMIT derivation, see package memory
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//   - TRUST_PROXY_HEADERS: take the access log client address from
//     X-Forwarded-For or X-Real-IP (default: false)
//
// Durations accept Go syntax ("90s", "1h") or a bare number of seconds.
//
// # Build Information
//
// Version, Commit and BuildTime are injected with -ldflags and exposed via
// [GetBuildInfo].
package startup
