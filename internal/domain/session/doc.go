// Package session holds per-recording-session state: the ordered step
// list, the last known page of the recorder, and the set of live
// dashboard listeners subscribed to the session's event stream.
//
// Sessions are created lazily on first reference, live only in process
// memory, and are reaped once they have had zero listeners for longer
// than a configured grace period. The Store interface is the seam for a
// future shared backend; InMemory is the only implementation today,
// which means multi-instance deployments require sticky routing.
//
// Components:
//   - Store: get-or-create, append, subscribe/unsubscribe, stop, reap
//   - Listener: one live server-push connection (SSE or WebSocket)
//   - Reaper: cron-driven idle sweep
//
// Ordering: steps are appended and broadcast in server receive order; a
// late subscriber first receives the last connected announcement (if
// any) followed by a sync event carrying the full accumulated list.
package session
