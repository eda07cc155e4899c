package resume

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// StorageKey is the single slot name used in whatever backing store the
// host embeds the engine with (browser localStorage in the SDK build).
const StorageKey = "otw.tour.resume"

// State is the persisted cross-navigation checkpoint.
type State struct {
	TaskSlug  string    `json:"taskSlug"`
	StepIndex int       `json:"stepIndex"`
	StartedAt time.Time `json:"startedAt"`
}

// Storage is a single-slot store for the resume checkpoint. Save
// overwrites any existing state; only one checkpoint can be in flight
// at a time.
type Storage interface {
	Load() (State, bool, error)
	Save(State) error
	Clear() error
}

// MemoryStorage is the in-process Storage, used in tests and by hosts
// that keep the engine alive across soft navigations.
type MemoryStorage struct {
	mu    sync.Mutex
	data  []byte
	saved bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return State{}, false, nil
	}
	var s State
	if err := sonic.Unmarshal(m.data, &s); err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

func (m *MemoryStorage) Save(s State) error {
	data, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saved = true
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.saved = false
	return nil
}
