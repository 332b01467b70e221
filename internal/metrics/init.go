package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(volumes []string) {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	volumes = append(volumes, "unknown")
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, strategy := range []string{"file", "http", "column", "document", "descriptor", "stream"} {
		for _, result := range []string{"resolved", "fallthrough", "error"} {
			ResolutionAttempts.WithLabelValues(strategy, result)
		}
	}

	for _, result := range []string{"copied", "in_place", "error"} {
		Materializations.WithLabelValues(result)
	}

	for _, stage := range []string{"bound", "metadata", "thumbnails", "fingerprint"} {
		for _, status := range []string{"done", "skipped", "degraded", "fatal"} {
			PostProcessTotal.WithLabelValues(stage, status)
		}
		PostProcessDuration.WithLabelValues(stage)
	}

	for _, outcome := range []string{"succeeded", "failed"} {
		ItemsTotal.WithLabelValues(outcome)
	}

	for _, coll := range []string{"images", "video", "audio", "downloads"} {
		ProviderMediaTotal.WithLabelValues(coll)
	}

	for _, op := range []string{"initialize_schema", "insert_media", "upsert_grant", "delete_grant", "query", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
