// Package metrics provides Prometheus instrumentation for the media picker.
//
// All metrics are registered with the default registry through promauto and
// prefixed with "media_picker_". Mount promhttp.Handler() to expose them.
//
// # Metric Categories
//
// Pipeline:
//   - ResolutionAttempts: strategy attempts by strategy and result
//   - Materializations: copies by result (copied, in_place, error)
//   - PostProcessTotal / PostProcessDuration: image stages by stage and status
//   - ItemsTotal: finished items by outcome
//   - BatchDuration, BatchesRunning: batch timing and concurrency
//   - DownloadBytes: bytes fetched over HTTP or copied from provider streams
//
// Provider store and indexer:
//   - DBQueryTotal / DBQueryDuration: SQLite queries by operation
//   - DBSizeBytes: database file sizes (main, WAL, SHM)
//   - ProviderMediaTotal, ProviderGrantsTotal: row counts, updated by [Collector]
//   - Indexer*: scan runs, files registered, errors
//
// Filesystem: operation durations and stale-handle retry counters, fed by the
// observer returned from NewFilesystemObserver.
//
// # Collector
//
// [Collector] periodically reads counts from a [StatsProvider] together with
// Go runtime memory statistics and database file sizes:
//
//	collector := metrics.NewCollector(store, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Share of items that failed:
//
//	sum(rate(media_picker_items_total{outcome="failed"}[5m])) / sum(rate(media_picker_items_total[5m]))
//
// Which resolution strategy actually resolves content URIs:
//
//	sum(rate(media_picker_resolution_attempts_total{result="resolved"}[1h])) by (strategy)
package metrics
