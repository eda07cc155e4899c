package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/shared/id"
)

// heartbeatPeriod keeps intermediaries from closing an idle stream.
const heartbeatPeriod = 25 * time.Second

// StreamSession opens the server-push listener for a session. Events
// are framed as SSE: the caught-up connected/sync pair first, then live
// broadcasts, with periodic comment heartbeats.
func (h *Handlers) StreamSession(c *gin.Context) {
	sessionID := c.Param("id")
	if !id.ValidSessionToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}

	listener, err := h.store.Subscribe(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
		return
	}
	defer h.store.Unsubscribe(sessionID, listener)

	if h.metrics != nil {
		h.metrics.IncListeners()
		defer h.metrics.DecListeners()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	done := c.Request.Context().Done()
	for {
		select {
		case ev, ok := <-listener.Events():
			if !ok {
				// Stop was broadcast and the channel closed behind it.
				return
			}
			if err := writeSSE(c, ev); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-done:
			if listener.Dropped() && h.metrics != nil {
				h.metrics.IncListenerDrops()
			}
			return
		}
	}
}

func writeSSE(c *gin.Context, ev event.Event) error {
	data, err := event.Encode(ev)
	if err != nil {
		return nil
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.EventType(), data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// Snippet returns the copy-paste embed block for snippet-mode
// recording, minting a fresh session id when none was supplied.
func (h *Handlers) Snippet(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		sessionID = id.NewSessionID().String()
	}
	if !id.ValidSessionToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}

	// Re-requesting a snippet for a live session must not count as a
	// second creation.
	_, created := h.store.GetOrCreate(sessionID)
	if h.metrics != nil {
		if created {
			h.metrics.IncSessionsCreated()
		}
		h.metrics.SetSessionsActive(h.store.Count())
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": sessionID,
		"snippet": h.assets.Snippet(h.recorderURL, sessionID),
	})
}

// RecorderJS serves the in-page recorder script.
func (h *Handlers) RecorderJS(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", h.assets.RecorderJS())
}
