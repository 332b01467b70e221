// Package middleware wraps the picker's HTTP API with W3C request logging
// and Prometheus request metrics.
package middleware
