// Package logging provides a small leveled logger used throughout the
// media picker.
//
// Levels, lowest to highest:
//   - DEBUG: strategy fallthroughs, per-stage decisions
//   - INFO: batch lifecycle and startup configuration
//   - WARN: swallowed failures (bounding, metadata, close errors)
//   - ERROR: item failures and server errors
//   - FATAL: unrecoverable startup errors
//
// The level is read once from DEBUG or LOG_LEVEL and can be overridden with
// SetLevel (the pick CLI does this for --log-level).
package logging
