package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/infrastructure/monitoring"
	"github.com/otwlabs/otw/internal/proxy"
	"github.com/otwlabs/otw/internal/recorder"
)

// Handlers bundles the HTTP surface's dependencies.
type Handlers struct {
	store   session.Store
	engine  *proxy.Engine
	assets  *recorder.Assets
	metrics *monitoring.Metrics
	logger  *zap.Logger

	// recorderURL is the absolute or relative URL snippets point at.
	recorderURL string
}

// NewHandlers creates the handler set.
func NewHandlers(store session.Store, engine *proxy.Engine, assets *recorder.Assets, metrics *monitoring.Metrics, logger *zap.Logger, recorderURL string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorderURL == "" {
		recorderURL = "/recorder.js"
	}
	return &Handlers{
		store:       store,
		engine:      engine,
		assets:      assets,
		metrics:     metrics,
		logger:      logger,
		recorderURL: recorderURL,
	}
}

// Root returns service identification
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "otw-recorder",
		"status":  "running",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Health returns liveness plus a session count for quick triage
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.store.Count(),
	})
}
