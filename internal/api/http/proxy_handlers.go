package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/infrastructure/monitoring"
	"github.com/otwlabs/otw/internal/proxy"
	"github.com/otwlabs/otw/internal/shared/id"
)

// maxProxyBodyBytes bounds a proxied form submission body.
const maxProxyBodyBytes = 4 << 20

// RecordProxy is the path-routed entry: /record/:session/*target. The
// wildcard swallows one slash of the scheme separator; the engine's
// normalizer repairs it. Cookies are forwarded on this same-site shape.
func (h *Handlers) RecordProxy(c *gin.Context) {
	sessionID := c.Param("session")
	if !id.ValidSessionToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}

	target := strings.TrimPrefix(c.Param("target"), "/")
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}

	h.serveProxied(c, proxy.Request{
		SessionID:      sessionID,
		TargetURL:      target,
		Method:         c.Request.Method,
		Header:         c.Request.Header,
		Body:           h.requestBody(c),
		ForwardCookies: true,
	})
}

// ProxyFetch is the header/query entry an edge rewrite rule populates:
// session and target arrive as x-otw-session/x-otw-url headers or
// session=/url= query parameters. Never forwards cookies; this shape is
// CORS-facing.
func (h *Handlers) ProxyFetch(c *gin.Context) {
	sessionID := c.GetHeader("x-otw-session")
	if sessionID == "" {
		sessionID = c.Query("session")
	}
	target := c.GetHeader("x-otw-url")
	if target == "" {
		target = c.Query("url")
	}

	if !id.ValidSessionToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing target url"})
		return
	}

	h.serveProxied(c, proxy.Request{
		SessionID: sessionID,
		TargetURL: target,
		Method:    c.Request.Method,
		Header:    c.Request.Header,
		Body:      h.requestBody(c),
	})
}

func (h *Handlers) requestBody(c *gin.Context) []byte {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProxyBodyBytes))
	if err != nil {
		return nil
	}
	return body
}

// serveProxied runs the engine and maps its result onto the response.
func (h *Handlers) serveProxied(c *gin.Context, req proxy.Request) {
	var timer *monitoring.Timer
	if h.metrics != nil {
		timer = monitoring.NewTimer(h.metrics)
	}

	resp, err := h.engine.Handle(c.Request.Context(), req)
	if err != nil {
		var bad *proxy.BadTargetError
		if errors.As(err, &bad) {
			if timer != nil {
				timer.Stop("error")
			}
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": bad.Error()})
			return
		}
		if timer != nil {
			timer.Stop("error")
		}
		h.logger.Warn("proxy upstream failure", zap.String("target", req.TargetURL), zap.Error(err))
		c.String(http.StatusBadGateway, "upstream fetch failed: %s\n", req.TargetURL)
		return
	}

	if resp.Location != "" {
		if timer != nil {
			timer.Stop("redirect")
		}
		c.Redirect(resp.StatusCode, resp.Location)
		return
	}

	if resp.HTML {
		if timer != nil {
			timer.Stop("html")
		}
		h.serveHTML(c, resp)
		return
	}

	if timer != nil {
		timer.Stop("passthrough")
	}
	defer resp.Body.Close()
	c.Header("Cache-Control", resp.CacheControl)
	c.Header("Content-Type", resp.ContentType)
	c.Status(resp.StatusCode)
	io.Copy(c.Writer, resp.Body)
}

// serveHTML writes the rewritten document, recompressing when the
// browser accepts gzip. Upstream content arrived decompressed; size is
// recovered here at the edge.
func (h *Handlers) serveHTML(c *gin.Context, resp *proxy.Response) {
	defer resp.Body.Close()
	html, err := io.ReadAll(resp.Body)
	if err != nil {
		c.String(http.StatusBadGateway, "document read failed\n")
		return
	}
	if h.metrics != nil {
		h.metrics.AddRewrittenBytes(len(html))
	}

	c.Header("Cache-Control", resp.CacheControl)
	c.Header("Content-Type", resp.ContentType)

	if strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		c.Header("Content-Encoding", "gzip")
		c.Status(resp.StatusCode)
		gz := gzip.NewWriter(c.Writer)
		gz.Write(html)
		gz.Close()
		return
	}

	c.Data(resp.StatusCode, resp.ContentType, html)
}
