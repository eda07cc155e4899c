// Package ws provides the WebSocket variant of the session stream.
//
// A dashboard that prefers a duplex channel over SSE connects here; it
// receives the same framed events the SSE stream emits (connected, sync,
// step, stop) and may send control events back on the same connection.
//
// Message Types (Server → Client):
//   - connected: recorder announced itself with URL/title
//   - sync: full accumulated step list (sent on subscribe)
//   - step: one captured step
//   - stop: session ended, carries the final step list
//   - pong: recorder liveness answer, relayed
//
// Message Types (Client → Server):
//   - ping: probe for an already-active recorder
//   - stop: request session teardown
//
// Example Usage:
//
//	handler := ws.NewHandler(store, metrics, logger)
//	router.GET("/api/v1/sessions/:id/ws", handler.HandleListener)
package ws
