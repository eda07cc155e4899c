// Package main is the entry point for the otw recording server.
//
// The server fronts three surfaces:
//   - the reverse proxy that rewrites customer pages and injects the
//     in-page recorder (/record/..., /proxy/fetch)
//   - the session API that ingests recorder events and streams them to
//     dashboards over SSE and WebSocket (/api/v1/...)
//   - operational endpoints (/health, /metrics, /metrics/json)
//
// Configuration comes from environment variables, optionally overlaid
// by a YAML file (OTW_CONFIG_FILE or -config). Flags override both.
//
// Usage:
//
//	# Production mode
//	./server
//
//	# Development mode (colored logs, debug level)
//	./server -dev -port 8000
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
