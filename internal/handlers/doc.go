// Package handlers provides the HTTP API of the media picker.
//
// It includes handlers for:
//   - Submitting picker batches and polling their results
//   - Triggering provider index runs and listing registered media
//   - Managing content URI grants
//   - Health, readiness and version checks
//
// NewRouter wires every handler onto a gorilla/mux router. Metrics are served
// separately on the metrics port through MetricsHandler.
package handlers
