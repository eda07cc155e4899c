package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// metricsSummary provides high-level metrics for the dashboard's
// status strip without a Prometheus scrape.
type metricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	ActiveSessions   int64   `json:"active_sessions"`
	StepsCaptured    int64   `json:"steps_captured"`
}

// MetricsJSON returns the aggregate counters as JSON. The full metric
// families stay on the Prometheus /metrics endpoint.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	snap := h.metrics.Snapshot()

	summary := metricsSummary{
		TotalRequests:    snap.TotalRequests,
		AverageLatencyMs: snap.AverageDuration() * 1000,
		ActiveSessions:   int64(h.store.Count()),
		StepsCaptured:    snap.StepsCaptured,
	}
	if snap.TotalRequests > 0 {
		summary.ErrorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"summary":   summary,
	})
}
