package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/api/http"
	"github.com/otwlabs/otw/internal/api/middleware"
	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/infrastructure/config"
	"github.com/otwlabs/otw/internal/infrastructure/logging"
	"github.com/otwlabs/otw/internal/infrastructure/monitoring"
	"github.com/otwlabs/otw/internal/infrastructure/tracing"
	"github.com/otwlabs/otw/internal/proxy"
	"github.com/otwlabs/otw/internal/recorder"
	"github.com/otwlabs/otw/internal/ws"
)

// Server wraps the HTTP router and its dependencies.
type Server struct {
	router  *gin.Engine
	store   session.Store
	reaper  *session.Reaper
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer assembles the recording service from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromConfig(cfg.Logging)

	logger.Info("initializing recording service",
		zap.String("port", cfg.Server.Port),
		zap.Duration("session_idle_grace", cfg.Session.IdleGrace),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("otw", logger.Logger)

	// Recorder assets are embedded; a broken bundle is a build defect
	// and must fail startup, not the first proxied page.
	assets, err := recorder.New()
	if err != nil {
		return nil, fmt.Errorf("load recorder assets: %w", err)
	}
	if err := assets.Verify(); err != nil {
		return nil, fmt.Errorf("verify recorder script: %w", err)
	}
	logger.Info("recorder assets verified")

	store := session.NewInMemory(session.Options{
		MaxSteps:       cfg.Session.MaxSteps,
		ListenerBuffer: cfg.Session.ListenerBuffer,
	}, logger.Logger)

	client := proxy.NewClient(proxy.ClientConfig{
		Timeout:    cfg.Proxy.Timeout,
		MaxRetries: cfg.Proxy.MaxRetries,
		UserAgent:  cfg.Proxy.UserAgent,
		RPS:        float64(cfg.Proxy.UpstreamRPS),
	})
	pcfg := proxy.DefaultConfig()
	pcfg.AllowPrivate = cfg.Proxy.AllowPrivate
	engine := proxy.NewEngine(pcfg, client, assets, store, logger.Logger)

	handlers := http.NewHandlers(store, engine, assets, metrics, logger.Logger, pcfg.RecorderPath)
	wsHandler := ws.NewHandler(store, metrics, logger.Logger)

	reaper := session.NewReaper(store, cfg.Session.IdleGrace, logger.Logger).
		WithCallback(func(reaped, active int) {
			metrics.AddSessionsReaped(reaped)
			metrics.SetSessionsActive(active)
		})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// In-page recorder bundle.
	router.GET(pcfg.RecorderPath, handlers.RecorderJS)

	// Rate limiting covers the session API only. Proxy routes are
	// exempt: one proxied page load fans out dozens of asset requests
	// from the same IP.
	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Copy-paste embed snippet, session lifecycle, event ingestion.
	api.GET("/snippet", handlers.Snippet)
	api.GET("/sessions/:id", handlers.GetSession)
	api.DELETE("/sessions/:id", handlers.DeleteSession)
	api.POST("/sessions/:id/events", handlers.PostEvents)

	// Live dashboards: SSE for one-way consumers, WebSocket for
	// bidirectional ones.
	api.GET("/sessions/:id/stream", handlers.StreamSession)
	api.GET("/sessions/:id/ws", wsHandler.HandleListener)

	// Proxied page loads. Both entry shapes run the same rewrite path.
	router.GET("/record/:session/*target", handlers.RecordProxy)
	router.POST("/record/:session/*target", handlers.RecordProxy)
	router.Any("/proxy/fetch", handlers.ProxyFetch)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", handlers.MetricsJSON)

	reaper.Start()
	logger.Info("server initialized")

	return &Server{
		router:  router,
		store:   store,
		reaper:  reaper,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close stops background work and flushes logs.
func (s *Server) Close() error {
	s.logger.Info("shutting down")
	s.reaper.Stop()
	s.logger.Sync()
	return nil
}
