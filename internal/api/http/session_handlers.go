package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/selector"
	"github.com/otwlabs/otw/internal/shared/id"
)

// maxEventBytes bounds a single event POST body.
const maxEventBytes = 1 << 20

// PostEvents ingests one recorder event for the session.
func (h *Handlers) PostEvents(c *gin.Context) {
	sessionID := c.Param("id")
	if !id.ValidSessionToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	ev, err := event.Decode(body)
	if err != nil {
		// Malformed payloads must never crash in-memory session state.
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed event"})
		return
	}
	if h.metrics != nil {
		h.metrics.RecordEvent(string(ev.EventType()))
	}

	switch e := ev.(type) {
	case event.Init:
		h.store.SetConnected(sessionID, e.URL, e.Title)
	case event.Connected:
		h.store.SetConnected(sessionID, e.URL, e.Title)
	case event.Step:
		step := e.Step
		if derived := h.rederiveSelector(sessionID, e); derived != "" {
			step.Selector = derived
		}
		if _, err := h.store.AppendStep(sessionID, step); err != nil {
			if errors.Is(err, session.ErrStepLimit) {
				c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "step limit reached"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if h.metrics != nil {
			h.metrics.IncStepsCaptured()
		}
	case event.Stop:
		h.store.Stop(sessionID)
	case event.Pong:
		h.store.Broadcast(sessionID, e)
	case event.Ping:
		h.store.Broadcast(sessionID, e)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unsupported event type"})
		return
	}

	// A stop discards the session; the count read must not revive it.
	stepCount := 0
	if info, err := h.store.Get(sessionID); err == nil {
		stepCount = info.StepCount
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"stepCount": stepCount,
	})
}

// rederiveSelector recomputes the step's selector against the cached
// pre-rewrite document when the recorder supplied a raw element
// description. The in-page cascade runs against the rewritten DOM; the
// server-side pass validates against the page as the target site serves
// it. Empty means keep the recorder's selector.
func (h *Handlers) rederiveSelector(sessionID string, e event.Step) string {
	if e.Element == nil {
		return ""
	}
	html, ok := h.store.Document(sessionID)
	if !ok {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	derived := selector.DeriveFromRef(doc, *e.Element)
	if derived != "" && derived != e.Step.Selector {
		h.logger.Debug("selector re-derived",
			zap.String("session", sessionID),
			zap.String("recorder", e.Step.Selector),
			zap.String("derived", derived),
		)
	}
	return derived
}

// GetSession returns the session's status snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	info, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": info,
	})
}

// DeleteSession stops the session, broadcasting the final step list.
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.store.Stop(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
