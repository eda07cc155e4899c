package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/domain/session"
	"github.com/otwlabs/otw/internal/domain/tour"
)

func newTestServer(t *testing.T) (*httptest.Server, session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewInMemory(session.Options{}, zap.NewNop())
	handler := NewHandler(store, nil, zap.NewNop())

	router := gin.New()
	router.GET("/api/v1/sessions/:id/ws", handler.HandleListener)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := event.Decode(data)
	require.NoError(t, err)
	return ev
}

func TestListenerReceivesCatchUpThenLive(t *testing.T) {
	srv, store := newTestServer(t)

	store.SetConnected("s1", "https://example.com/", "Example")
	_, err := store.AppendStep("s1", tour.CapturedStep{Selector: "#first", TagName: "a"})
	require.NoError(t, err)

	conn := dial(t, srv, "s1")

	connected, ok := readEvent(t, conn).(event.Connected)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/", connected.URL)

	sync, ok := readEvent(t, conn).(event.Sync)
	require.True(t, ok)
	require.Len(t, sync.Steps, 1)
	assert.Equal(t, "#first", sync.Steps[0].Selector)

	_, err = store.AppendStep("s1", tour.CapturedStep{Selector: "#second", TagName: "a"})
	require.NoError(t, err)

	step, ok := readEvent(t, conn).(event.Step)
	require.True(t, ok)
	assert.Equal(t, "#second", step.Step.Selector)
}

func TestListenerPingIsBroadcast(t *testing.T) {
	srv, store := newTestServer(t)
	store.GetOrCreate("s2")

	conn := dial(t, srv, "s2")
	readEvent(t, conn) // sync

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	// The broadcast loops back to every listener, this one included.
	ev := readEvent(t, conn)
	assert.Equal(t, event.TypePing, ev.EventType())
}

func TestListenerStopEndsSession(t *testing.T) {
	srv, store := newTestServer(t)
	store.GetOrCreate("s3")

	conn := dial(t, srv, "s3")
	readEvent(t, conn) // sync

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)))

	require.Eventually(t, func() bool {
		return store.Count() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestInvalidSessionIDRejectedBeforeUpgrade(t *testing.T) {
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/%2e%2e/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 400, resp.StatusCode)
	}
}
