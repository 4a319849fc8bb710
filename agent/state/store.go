package state

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrStateNotFound  = errors.New("session not found")
	ErrAlreadyExists  = errors.New("session already exists")
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

// Store is the session registry contract used by the orchestrator. Sessions
// are process-resident by default; a durable driver can be substituted
// without touching orchestration logic.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Create(ctx context.Context, s *Session) error
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sessionID string) error

	// Acquire takes the per-session turn lock. A session is exclusively
	// owned by the turn processing it; cross-session turns run in parallel.
	// The lock is process-local in every driver.
	Acquire(sessionID string) (release func())

	// EvictExpired removes sessions idle past the timeout. It never touches
	// a session whose turn lock is currently held.
	EvictExpired(ctx context.Context, idle time.Duration, now time.Time) (int, error)
}

// lockTable is a keyed mutex shared by store drivers.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sessionLock)}
}

func (t *lockTable) acquire(id string) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sessionLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

// held reports whether a turn currently owns (or is waiting on) the lock.
func (t *lockTable) held(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[id]
	return ok && l.refs > 0
}
