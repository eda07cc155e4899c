package session

import (
	"sync"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/shared/id"
)

// defaultListenerBuffer bounds how far a consumer may fall behind before
// it is dropped. Sized for a burst of sync + a busy recorder.
const defaultListenerBuffer = 64

// Listener is one live server-push connection held in a session's client
// set. Writes are fire-and-forget: a full buffer marks the listener
// dropped and it receives nothing further until it resubscribes.
type Listener struct {
	ID id.ListenerID

	ch      chan event.Event
	closeMu sync.Mutex
	closed  bool
	dropped bool
}

func newListener(buffer int) *Listener {
	if buffer <= 0 {
		buffer = defaultListenerBuffer
	}
	return &Listener{
		ID: id.NewListenerID(),
		ch: make(chan event.Event, buffer),
	}
}

// Events is the stream the transport handler ranges over. It is closed
// on unsubscribe, session stop, or when the listener is dropped.
func (l *Listener) Events() <-chan event.Event {
	return l.ch
}

// Dropped reports whether the listener was evicted for falling behind.
func (l *Listener) Dropped() bool {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	return l.dropped
}

// send attempts a non-blocking delivery. Returns false when the listener
// is closed or its buffer is full, in which case the caller evicts it.
func (l *Listener) send(e event.Event) bool {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return false
	}
	select {
	case l.ch <- e:
		return true
	default:
		l.dropped = true
		return false
	}
}

// close shuts the channel exactly once.
func (l *Listener) close() {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
