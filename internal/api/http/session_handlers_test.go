package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/infrastructure/monitoring"
	"github.com/otwlabs/otw/internal/proxy"
	"github.com/otwlabs/otw/internal/recorder"
)

var (
	metricsOnce sync.Once
	testMetrics *monitoring.Metrics
)

// sharedMetrics returns a process-wide collector; promauto registers
// on the default registry, so a second NewMetrics would panic.
func sharedMetrics() *monitoring.Metrics {
	metricsOnce.Do(func() {
		testMetrics = monitoring.NewMetrics()
	})
	return testMetrics
}

func newTestRouter(t *testing.T) (*gin.Engine, session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewInMemory(session.Options{}, zap.NewNop())
	assets, err := recorder.New()
	require.NoError(t, err)

	pcfg := proxy.DefaultConfig()
	pcfg.AllowPrivate = true
	engine := proxy.NewEngine(pcfg, proxy.NewClient(proxy.DefaultClientConfig()), assets, store, zap.NewNop())

	h := NewHandlers(store, engine, assets, sharedMetrics(), zap.NewNop(), "/recorder.js")

	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/api/v1/sessions/:id", h.GetSession)
	router.DELETE("/api/v1/sessions/:id", h.DeleteSession)
	router.POST("/api/v1/sessions/:id/events", h.PostEvents)
	router.GET("/api/v1/sessions/:id/stream", h.StreamSession)
	router.GET("/api/v1/snippet", h.Snippet)
	router.GET("/recorder.js", h.RecorderJS)
	router.GET("/record/:session/*target", h.RecordProxy)
	router.POST("/record/:session/*target", h.RecordProxy)
	router.Any("/proxy/fetch", h.ProxyFetch)
	router.GET("/metrics/json", h.MetricsJSON)
	return router, store
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestPostInitEventCreatesSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/sessions/s-init/events",
		`{"type":"init","url":"https://example.com/pricing","title":"Pricing"}`)
	require.Equal(t, http.StatusOK, w.Code)

	status := httptest.NewRecorder()
	router.ServeHTTP(status, httptest.NewRequest("GET", "/api/v1/sessions/s-init", nil))
	require.Equal(t, http.StatusOK, status.Code)
	assert.Contains(t, status.Body.String(), "https://example.com/pricing")
	assert.Contains(t, status.Body.String(), "Pricing")
}

func TestPostStepEvent(t *testing.T) {
	router, store := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/sessions/s-step/events",
		`{"type":"step","step":{"selector":"#buy","tagName":"button","innerText":"Buy","url":"https://example.com/"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success   bool `json:"success"`
		StepCount int  `json:"stepCount"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.StepCount)

	steps, err := store.Steps("s-step")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "#buy", steps[0].Selector)
	assert.Equal(t, 1, steps[0].Index)
}

func TestPostStepRederivesSelectorFromCachedDocument(t *testing.T) {
	router, store := newTestRouter(t)

	store.GetOrCreate("s-re")
	require.NoError(t, store.SetDocument("s-re",
		`<html><body><div><button id="checkout">Go</button></div></body></html>`))

	w := postJSON(t, router, "/api/v1/sessions/s-re/events",
		`{"type":"step","step":{"selector":"body > div > button","tagName":"button"},"element":{"tagName":"button","id":"checkout"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	steps, err := store.Steps("s-re")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "#checkout", steps[0].Selector)
}

func TestPostMalformedEvent(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/sessions/s-bad/events", `{"type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/v1/sessions/s-bad/events", `{"type":"volcano"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostEventInvalidSessionID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/sessions/%2e%2e/events", `{"type":"ping"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStopEventEndsSession(t *testing.T) {
	router, store := newTestRouter(t)

	postJSON(t, router, "/api/v1/sessions/s-stop/events", `{"type":"init","url":"https://x.test/"}`)
	w := postJSON(t, router, "/api/v1/sessions/s-stop/events", `{"type":"stop"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The stop response must not lazily recreate the session it just ended.
	_, err := store.Get("s-stop")
	assert.ErrorIs(t, err, session.ErrNotFound)

	status := httptest.NewRecorder()
	router.ServeHTTP(status, httptest.NewRequest("GET", "/api/v1/sessions/s-stop", nil))
	assert.Equal(t, http.StatusNotFound, status.Code)
}

func TestDeleteSession(t *testing.T) {
	router, store := newTestRouter(t)
	store.GetOrCreate("s-del")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/sessions/s-del", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/sessions/s-del", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamDeliversCatchUpAndLiveEvents(t *testing.T) {
	router, store := newTestRouter(t)

	postJSON(t, router, "/api/v1/sessions/s-sse/events", `{"type":"init","url":"https://example.com/"}`)
	postJSON(t, router, "/api/v1/sessions/s-sse/events",
		`{"type":"step","step":{"selector":"#one","tagName":"a","url":"https://example.com/"}}`)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/sessions/s-sse/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	// Let the subscriber attach, then produce a live step.
	require.Eventually(t, func() bool {
		info, err := store.Get("s-sse")
		return err == nil && info.Listeners == 1
	}, time.Second, 10*time.Millisecond)

	postJSON(t, router, "/api/v1/sessions/s-sse/events",
		`{"type":"step","step":{"selector":"#two","tagName":"a","url":"https://example.com/"}}`)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: sync")
	assert.Contains(t, body, `"selector":"#one"`)
	assert.Contains(t, body, "event: step")
	assert.Contains(t, body, `"selector":"#two"`)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}

func TestSnippetMintsSession(t *testing.T) {
	router, store := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/snippet", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Session string `json:"session"`
		Snippet string `json:"snippet"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Session, "sess_"))
	assert.Contains(t, resp.Snippet, "/recorder.js")
	assert.Contains(t, resp.Snippet, resp.Session)

	_, err := store.Get(resp.Session)
	assert.NoError(t, err)
}

func TestSnippetCountsCreationOnce(t *testing.T) {
	router, store := newTestRouter(t)
	store.GetOrCreate("s-snip-live")

	before := testutil.ToFloat64(sharedMetrics().SessionsCreated)

	// Re-requesting the snippet for a live session creates nothing.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/snippet?session=s-snip-live", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, before, testutil.ToFloat64(sharedMetrics().SessionsCreated))

	// A fresh session counts exactly once.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/snippet?session=s-snip-fresh", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(sharedMetrics().SessionsCreated))
}

func TestRecorderJSServed(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/recorder.js", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, w.Body.String(), "__otwActive")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMetricsJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics/json", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "active_sessions")
}
