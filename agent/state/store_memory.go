package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps sessions process-resident. Sessions are lost on restart;
// the redis driver is the durable substitute.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    *lockTable
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		locks:    newLockTable(),
	}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return s, nil
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.SessionID)
	}
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Acquire(sessionID string) func() {
	return m.locks.acquire(sessionID)
}

// EvictExpired removes sessions idle past the timeout. Sessions with a held
// turn lock are skipped; they are re-examined on the next sweep.
func (m *MemoryStore) EvictExpired(_ context.Context, idle time.Duration, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for id, s := range m.sessions {
		if m.locks.held(id) {
			continue
		}
		if now.Sub(s.LastActivity) > idle {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		if s := m.sessions[id]; s.Status == StatusActive {
			s.Status = StatusTimedOut
		}
		delete(m.sessions, id)
	}
	return len(expired), nil
}
