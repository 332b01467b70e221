// Package main provides the entry point for the Media Picker service.
//
// Media Picker accepts batches of picked media references (filesystem paths,
// http(s) URLs and content URIs), resolves each one to a readable file,
// copies it into the configured storage location and optionally bounds,
// thumbnails and fingerprints images. A local SQLite-backed content provider
// answers content URI queries and can index a media directory.
//
// # Application Lifecycle
//
//  1. Configuration Loading: environment variables overlay an optional TOML file
//  2. Memory Configuration: GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  3. Provider Initialization: opens the SQLite provider database
//  4. Component Initialization:
//     - libvips (if VIPS_ENABLED)
//     - Memory Monitor: holds back batch starts under heap pressure
//     - Indexer: registers MEDIA_DIR with the provider (if set)
//     - Batch Runner: runs picker batches on a bounded worker pool
//     - Metrics Collector: publishes provider counts and runtime stats
//  5. HTTP Server Setup: routes, logging and metrics middleware
//  6. Graceful Shutdown: SIGINT/SIGTERM stops components in order
//
// # HTTP Servers
//
//  1. Main Server (default port 8080): batch and provider API, health checks
//  2. Metrics Server (default port 9090, optional): /metrics and /health
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests
//  2. Wait for running batches
//  3. Stop indexer
//  4. Stop metrics collector and memory monitor
//  5. Shutdown metrics server
//  6. Shut down libvips
//  7. Close the provider database
//
// All shutdown steps share a 30 second timeout.
//
// # Related Packages
//
//   - [media-picker/internal/pipeline]: batch runner and per-item pipeline
//   - [media-picker/internal/provider]: SQLite content provider and indexer
//   - [media-picker/internal/handlers]: HTTP request handlers
//   - [media-picker/internal/startup]: configuration and startup logging
package main
