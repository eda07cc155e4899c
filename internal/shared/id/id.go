// Package id provides centralized ID generation for the recording service.
//
// IDs are ULIDs with type-specific prefixes (sess_*, cap_*) so log lines
// and wire payloads stay readable while remaining lexicographically
// sortable by creation time.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one in-progress recording session.
type SessionID string

// CaptureID identifies a single captured step within a session.
type CaptureID string

// ListenerID identifies one live dashboard subscription to a session stream.
type ListenerID string

const (
	SessionPrefix  = "sess"
	CapturePrefix  = "cap"
	ListenerPrefix = "lsn"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewCaptureID generates a new captured-step ID.
func NewCaptureID() CaptureID {
	return CaptureID(Default().GenerateWithPrefix(CapturePrefix))
}

// NewListenerID generates a new listener ID.
func NewListenerID() ListenerID {
	return ListenerID(Default().GenerateWithPrefix(ListenerPrefix))
}

func (id SessionID) String() string  { return string(id) }
func (id CaptureID) String() string  { return string(id) }
func (id ListenerID) String() string { return string(id) }

// ValidSessionToken reports whether a client-supplied session token is
// acceptable as a correlation key. Sessions are client-generated, so any
// short URL-safe token is allowed, not only prefixed ULIDs.
func ValidSessionToken(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(s, ".")
}

// Timestamp extracts the creation time from a prefixed or bare ULID string.
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
