package session

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/otwlabs/otw/internal/domain/event"
	"github.com/otwlabs/otw/internal/domain/tour"
	"github.com/otwlabs/otw/internal/shared/id"
)

const (
	// DefaultMaxSteps bounds per-session memory; an authoring session
	// past a few hundred clicks has gone wrong anyway.
	DefaultMaxSteps = 500

	// maxInnerText caps captured element text, in runes.
	maxInnerText = 64

	// maxDocumentBytes caps the cached pre-rewrite document per session.
	maxDocumentBytes = 2 << 20
)

// Options tune the in-memory store.
type Options struct {
	MaxSteps       int
	ListenerBuffer int
}

type state struct {
	info      Info
	steps     []tour.CapturedStep
	listeners map[id.ListenerID]*Listener
	document  string

	// emptySince is set when the listener count drops to zero; the
	// reaper uses it as the idle clock.
	emptySince time.Time
}

// InMemory is the single-instance Store implementation: a mutex-guarded
// map of session id to state.
type InMemory struct {
	mu        sync.Mutex
	sessions  map[string]*state
	opts      Options
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

// NewInMemory creates an in-memory session store.
func NewInMemory(opts Options, logger *zap.Logger) *InMemory {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemory{
		sessions:  make(map[string]*state),
		opts:      opts,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// GetOrCreate returns the session's info, creating it lazily, and
// reports whether this call created it.
func (s *InMemory) GetOrCreate(sessionID string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.sessions[sessionID]
	return s.getOrCreateLocked(sessionID).info, !existed
}

func (s *InMemory) getOrCreateLocked(sessionID string) *state {
	st, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now()
		st = &state{
			info:       Info{ID: sessionID, CreatedAt: now},
			listeners:  make(map[id.ListenerID]*Listener),
			emptySince: now,
		}
		s.sessions[sessionID] = st
		s.logger.Info("session created", zap.String("session", sessionID))
	}
	return st
}

// Get returns info for an existing session.
func (s *InMemory) Get(sessionID string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return Info{}, ErrNotFound
	}
	return st.info, nil
}

// SetConnected records the recorder's page and broadcasts it.
func (s *InMemory) SetConnected(sessionID, url, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(sessionID)
	st.info.ConnectedURL = url
	st.info.Title = title
	s.broadcastLocked(st, event.Connected{URL: url, Title: title})
	return nil
}

// AppendStep sanitizes, numbers, appends, and broadcasts a step.
func (s *InMemory) AppendStep(sessionID string, step tour.CapturedStep) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(sessionID)
	if len(st.steps) >= s.opts.MaxSteps {
		return len(st.steps), ErrStepLimit
	}

	if step.ID == "" {
		step.ID = id.NewCaptureID()
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	step.Index = len(st.steps) + 1
	step.InnerText = s.cleanText(step.InnerText)

	st.steps = append(st.steps, step)
	st.info.StepCount = len(st.steps)
	s.broadcastLocked(st, event.Step{Step: step})
	return len(st.steps), nil
}

// cleanText strips markup the recorder should never have sent and
// truncates to a display-sized prefix.
func (s *InMemory) cleanText(text string) string {
	text = strings.TrimSpace(s.sanitizer.Sanitize(text))
	if utf8.RuneCountInString(text) <= maxInnerText {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxInnerText])
}

// Steps returns a copy of the accumulated step list.
func (s *InMemory) Steps(sessionID string) ([]tour.CapturedStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySteps(st.steps), nil
}

// Broadcast fans an event out without mutating session state.
func (s *InMemory) Broadcast(sessionID string, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.broadcastLocked(st, e)
	return nil
}

// broadcastLocked delivers to every listener, evicting any that cannot
// keep up so one slow dashboard tab never stalls the rest.
func (s *InMemory) broadcastLocked(st *state, e event.Event) {
	for lid, l := range st.listeners {
		if !l.send(e) {
			delete(st.listeners, lid)
			l.close()
			s.logger.Warn("listener dropped",
				zap.String("session", st.info.ID),
				zap.String("listener", lid.String()),
			)
		}
	}
	st.info.Listeners = len(st.listeners)
	if len(st.listeners) == 0 && st.emptySince.IsZero() {
		st.emptySince = time.Now()
	}
}

// Subscribe attaches a listener primed with connected + sync catch-up.
func (s *InMemory) Subscribe(sessionID string) (*Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(sessionID)
	l := newListener(s.opts.ListenerBuffer)

	// Catch-up happens before the listener joins the set, so it cannot
	// interleave with a concurrent broadcast.
	if st.info.ConnectedURL != "" {
		l.send(event.Connected{URL: st.info.ConnectedURL, Title: st.info.Title})
	}
	l.send(event.Sync{Steps: copySteps(st.steps)})

	st.listeners[l.ID] = l
	st.info.Listeners = len(st.listeners)
	st.emptySince = time.Time{}
	return l, nil
}

// Unsubscribe detaches a listener and closes its channel.
func (s *InMemory) Unsubscribe(sessionID string, l *Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		delete(st.listeners, l.ID)
		st.info.Listeners = len(st.listeners)
		if len(st.listeners) == 0 {
			st.emptySince = time.Now()
		}
	}
	l.close()
}

// Stop broadcasts the final step list, closes listeners, and discards
// the session. An abandoned recording has no further authoring value.
func (s *InMemory) Stop(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.broadcastLocked(st, event.Stop{Steps: copySteps(st.steps)})
	for _, l := range st.listeners {
		l.close()
	}
	delete(s.sessions, sessionID)
	s.logger.Info("session stopped",
		zap.String("session", sessionID),
		zap.Int("steps", len(st.steps)),
	)
	return nil
}

// SetDocument caches the session's last proxied original document.
func (s *InMemory) SetDocument(sessionID, html string) error {
	if len(html) > maxDocumentBytes {
		html = html[:maxDocumentBytes]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(sessionID).document = html
	return nil
}

// Document returns the cached page HTML, if any.
func (s *InMemory) Document(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok || st.document == "" {
		return "", false
	}
	return st.document, true
}

// Reap discards sessions idle past grace with zero listeners.
func (s *InMemory) Reap(grace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-grace)
	reaped := 0
	for sid, st := range s.sessions {
		if len(st.listeners) == 0 && !st.emptySince.IsZero() && st.emptySince.Before(cutoff) {
			delete(s.sessions, sid)
			reaped++
			s.logger.Info("session reaped",
				zap.String("session", sid),
				zap.Int("steps", len(st.steps)),
			)
		}
	}
	return reaped
}

// Count returns the number of live sessions.
func (s *InMemory) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func copySteps(steps []tour.CapturedStep) []tour.CapturedStep {
	out := make([]tour.CapturedStep, len(steps))
	copy(out, steps)
	return out
}
