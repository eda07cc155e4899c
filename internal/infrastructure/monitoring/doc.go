/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
recording service, tracking HTTP requests, recording sessions, listener
streams, and proxy upstream fetches.

# Features

- HTTP request metrics (latency, throughput, size)
- Recording session metrics (active, created, reaped, steps captured)
- Listener stream metrics (active, evictions)
- Proxy metrics (requests by outcome, upstream latency, rewritten bytes)
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.IncStepsCaptured()
	metrics.SetSessionsActive(store.Count())

	// Time upstream fetches
	timer := monitoring.NewTimer(metrics)
	// ... fetch ...
	timer.Stop("html")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
