/*
Package filesystem wraps the file operations the picker performs on its
target directories.

# Retry

StatWithRetry, OpenWithRetry and CreateWithRetry retry ESTALE (stale file
handle) errors with exponential backoff. Every other error fails on the first
attempt. Defaults:
  - MaxRetries: 3
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Storage directories are frequently network mounts, which is where ESTALE
shows up.

# Copying

CopyFile and WriteStream create the destination, stream into it and remove
the partial file when the copy fails. Close errors on the source are logged
at debug level and never returned.

# Metrics

Operations report through an Observer set with SetObserver. The metrics
package provides the Prometheus implementation; with no observer set nothing
is recorded.
*/
package filesystem
