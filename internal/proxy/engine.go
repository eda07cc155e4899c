package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/recorder"
)

const (
	// maxHTMLBytes bounds documents read into memory for rewriting.
	maxHTMLBytes = 10 << 20

	// sniffBytes feeds content-type detection when upstream omits one.
	sniffBytes = 3072

	// defaultAssetCache is the conservative fallback when upstream sends
	// no Cache-Control on a passthrough asset.
	defaultAssetCache = "public, max-age=300"
)

// Config wires the engine into the service's URL space.
type Config struct {
	// PublicPrefix is the path-routed entry, e.g. "/record"; the
	// per-session prefix becomes PublicPrefix + "/" + sessionID.
	PublicPrefix string

	// RecorderPath is where the recorder script is served.
	RecorderPath string

	// EventsPathFormat renders the per-session relay endpoint; it must
	// contain one %s for the session id.
	EventsPathFormat string

	// AllowPrivate disables the SSRF guard, for local development only.
	AllowPrivate bool
}

// DefaultConfig returns the engine's stock URL wiring.
func DefaultConfig() Config {
	return Config{
		PublicPrefix:     "/record",
		RecorderPath:     "/recorder.js",
		EventsPathFormat: "/api/v1/sessions/%s/events",
	}
}

// Request is one browser request to be proxied, already stripped of its
// routing shape (path-segment or header-driven; the engine accepts
// either without knowing which was used).
type Request struct {
	SessionID string
	TargetURL string
	Method    string
	Header    http.Header
	Body      []byte

	// ForwardCookies is set only by the path-routed (same-site) variant;
	// the CORS-facing fetch relay must never forward credentials.
	ForwardCookies bool
}

// Response is the proxied result. Body is nil for redirects.
type Response struct {
	StatusCode   int
	ContentType  string
	CacheControl string
	Location     string
	HTML         bool
	Body         io.ReadCloser
}

// BadTargetError reports an unusable target URL (client error).
type BadTargetError struct{ Err error }

func (e *BadTargetError) Error() string { return fmt.Sprintf("bad proxy target: %v", e.Err) }
func (e *BadTargetError) Unwrap() error { return e.Err }

// UpstreamError reports a hard fetch failure (bad gateway).
type UpstreamError struct {
	Target string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream fetch of %s failed: %v", e.Target, e.Err)
}
func (e *UpstreamError) Unwrap() error { return e.Err }

// Engine fetches, classifies, rewrites, and injects.
type Engine struct {
	cfg      Config
	client   *Client
	rewriter Rewriter
	assets   *recorder.Assets
	store    session.Store
	logger   *zap.Logger
}

// NewEngine assembles the proxy engine. store may be nil when no
// server-side selector validation is wanted.
func NewEngine(cfg Config, client *Client, assets *recorder.Assets, store session.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		client:   client,
		rewriter: NewRewriter(),
		assets:   assets,
		store:    store,
		logger:   logger,
	}
}

// Handle proxies one request. Both entry shapes call this after
// extracting session and target from their own routing.
func (e *Engine) Handle(ctx context.Context, req Request) (*Response, error) {
	target, err := NormalizeTarget(req.TargetURL)
	if err != nil {
		return nil, &BadTargetError{Err: err}
	}
	if !e.cfg.AllowPrivate {
		if err := GuardPrivate(target); err != nil {
			return nil, &BadTargetError{Err: err}
		}
	}

	rctx := Context{
		SessionID: req.SessionID,
		Target:    target,
		Prefix:    strings.TrimSuffix(e.cfg.PublicPrefix, "/") + "/" + req.SessionID,
	}

	resp, err := e.client.Do(ctx, req.Method, target.String(), e.forwardHeaders(req), req.Body)
	if err != nil {
		e.logger.Warn("upstream fetch failed",
			zap.String("session", req.SessionID),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		return nil, &UpstreamError{Target: target.String(), Err: err}
	}

	raw := resp.RawBody()
	status := resp.StatusCode()

	if loc := resp.Header().Get("Location"); loc != "" && status >= 300 && status < 400 {
		raw.Close()
		return &Response{
			StatusCode: status,
			Location:   e.translateLocation(loc, target, rctx),
		}, nil
	}

	contentType, body := e.classify(resp.Header().Get("Content-Type"), raw)
	if !isHTML(contentType) {
		cache := resp.Header().Get("Cache-Control")
		if cache == "" {
			cache = defaultAssetCache
		}
		return &Response{
			StatusCode:   status,
			ContentType:  contentType,
			CacheControl: cache,
			Body:         body,
		}, nil
	}

	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxHTMLBytes))
	if err != nil {
		return nil, &UpstreamError{Target: target.String(), Err: err}
	}

	htmlText := decodeHTML(data, contentType)
	if e.store != nil && req.SessionID != "" {
		e.store.SetDocument(req.SessionID, htmlText)
	}

	rewritten := e.rewriter.Rewrite(htmlText, rctx)
	block, err := e.assets.InjectionBlock(recorder.Config{
		SessionID:   req.SessionID,
		BaseURL:     target.Scheme + "://" + target.Host,
		Prefix:      rctx.Prefix,
		EventsURL:   fmt.Sprintf(e.cfg.EventsPathFormat, req.SessionID),
		RecorderURL: e.cfg.RecorderPath,
	})
	if err != nil {
		// A broken bootstrap must not take the page down with it; serve
		// the rewrite alone and let the dashboard show "waiting".
		e.logger.Error("bootstrap render failed", zap.Error(err))
		block = ""
	}
	out := injectBlock(rewritten, block)

	return &Response{
		StatusCode: status,
		// Documents are served re-encoded; recording must always see
		// fresh content.
		ContentType:  "text/html; charset=utf-8",
		CacheControl: "no-store",
		HTML:         true,
		Body:         io.NopCloser(strings.NewReader(out)),
	}, nil
}

// forwardHeaders builds the safe allow-list forwarded upstream.
func (e *Engine) forwardHeaders(req Request) map[string]string {
	h := map[string]string{
		"User-Agent":      req.Header.Get("User-Agent"),
		"Accept":          req.Header.Get("Accept"),
		"Accept-Language": req.Header.Get("Accept-Language"),
	}
	if ct := req.Header.Get("Content-Type"); ct != "" && req.Body != nil {
		h["Content-Type"] = ct
	}
	if req.ForwardCookies {
		h["Cookie"] = req.Header.Get("Cookie")
	}
	return h
}

// translateLocation maps an upstream redirect target into the proxy
// shape, resolving relative locations against the fetched URL first.
func (e *Engine) translateLocation(loc string, target *url.URL, rctx Context) string {
	if u, err := url.Parse(loc); err == nil && !u.IsAbs() && !strings.HasPrefix(loc, "/") {
		loc = target.ResolveReference(u).String()
	}
	return e.rewriter.RewriteLocation(loc, rctx)
}

// classify settles the content type, sniffing the body's head when the
// upstream omitted or blanked the header.
func (e *Engine) classify(headerCT string, raw io.ReadCloser) (string, io.ReadCloser) {
	if headerCT != "" {
		return headerCT, raw
	}

	head := make([]byte, sniffBytes)
	n, _ := io.ReadFull(raw, head)
	head = head[:n]

	detected := mimetype.Detect(head).String()
	return detected, &prefixedReadCloser{
		Reader: io.MultiReader(bytes.NewReader(head), raw),
		closer: raw,
	}
}

type prefixedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (p *prefixedReadCloser) Close() error { return p.closer.Close() }

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// decodeHTML converts an upstream document to UTF-8, trusting the
// Content-Type charset first and falling back to byte-level detection.
func decodeHTML(data []byte, contentType string) string {
	if !strings.Contains(strings.ToLower(contentType), "charset=") {
		detector := chardet.NewTextDetector()
		if result, err := detector.DetectBest(data); err == nil && result != nil {
			contentType = "text/html; charset=" + strings.ToLower(result.Charset)
		}
	}
	utf8Reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return string(data)
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
