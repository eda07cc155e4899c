package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/infrastructure/monitoring"
	"github.com/otwlabs/otw/internal/shared/id"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards and recorders live on arbitrary origins.
		return true
	},
}

// Handler manages WebSocket listener connections for session streams.
type Handler struct {
	store   session.Store
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(store session.Store, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, metrics: metrics, logger: logger}
}

// HandleListener upgrades the connection and streams session events to
// the dashboard. Inbound frames carry control events (ping, stop) that
// are applied to the session.
func (h *Handler) HandleListener(c *gin.Context) {
	sessionID := c.Param("id")
	if !id.ValidSessionToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	listener, err := h.store.Subscribe(sessionID)
	if err != nil {
		return
	}
	defer h.store.Unsubscribe(sessionID, listener)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	done := make(chan struct{})
	go h.readLoop(conn, sessionID, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-listener.Events():
			if !ok {
				// Session stopped; the final stop event already went out.
				return
			}
			data, err := event.Encode(ev)
			if err != nil {
				h.logger.Error("event encode failed", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", string(ev.EventType()))
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop consumes inbound frames until the peer goes away. A
// dashboard may send ping (probe for an active recorder) or stop.
func (h *Handler) readLoop(conn *websocket.Conn, sessionID string, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := event.Decode(data)
		if err != nil {
			h.logger.Debug("unreadable ws frame", zap.String("session", sessionID), zap.Error(err))
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", string(ev.EventType()))
		}
		switch ev.EventType() {
		case event.TypePing:
			h.store.Broadcast(sessionID, ev)
		case event.TypeStop:
			h.store.Stop(sessionID)
			return
		default:
			// Listeners only control; step traffic arrives over the
			// events endpoint.
		}
	}
}
