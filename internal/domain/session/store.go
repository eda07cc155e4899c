package session

import (
	"errors"
	"time"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/domain/tour"
)

var (
	// ErrNotFound reports an operation against an unknown session.
	ErrNotFound = errors.New("session not found")

	// ErrStepLimit reports that a session hit its step cap.
	ErrStepLimit = errors.New("session step limit reached")
)

// Info is a read-only snapshot of a session for status display.
type Info struct {
	ID           string    `json:"id"`
	ConnectedURL string    `json:"connectedUrl,omitempty"`
	Title        string    `json:"title,omitempty"`
	StepCount    int       `json:"stepCount"`
	Listeners    int       `json:"listeners"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the session registry. Implementations must be safe for
// concurrent use; the in-memory implementation is the scaling boundary
// of a single-instance deployment.
type Store interface {
	// GetOrCreate returns the session's info, creating it lazily, and
	// reports whether this call created it.
	GetOrCreate(sessionID string) (Info, bool)

	// Get returns info for an existing session.
	Get(sessionID string) (Info, error)

	// SetConnected records the recorder's current page and broadcasts a
	// connected event to all listeners.
	SetConnected(sessionID, url, title string) error

	// AppendStep sanitizes, numbers, and appends a captured step, then
	// broadcasts it. Returns the resulting step count. Order of appends
	// is the order of broadcast.
	AppendStep(sessionID string, step tour.CapturedStep) (int, error)

	// Steps returns a copy of the accumulated step list.
	Steps(sessionID string) ([]tour.CapturedStep, error)

	// Broadcast fans an event out to all live listeners. Used for
	// protocol passthrough (ping/pong) that does not mutate state.
	Broadcast(sessionID string, e event.Event) error

	// Subscribe attaches a listener. The listener's channel is primed
	// with the last connected announcement (if any) and a sync event
	// before any subsequent broadcast is delivered.
	Subscribe(sessionID string) (*Listener, error)

	// Unsubscribe detaches a listener and closes its channel.
	Unsubscribe(sessionID string, l *Listener)

	// Stop broadcasts a final stop event carrying the accumulated steps,
	// closes all listeners, and discards the session.
	Stop(sessionID string) error

	// SetDocument caches the original (pre-rewrite) HTML of the page the
	// session most recently proxied, for server-side selector work.
	SetDocument(sessionID, html string) error

	// Document returns the cached page HTML, if any.
	Document(sessionID string) (string, bool)

	// Reap discards sessions that have had zero listeners for at least
	// grace, returning how many were dropped.
	Reap(grace time.Duration) int

	// Count returns the number of live sessions.
	Count() int
}
