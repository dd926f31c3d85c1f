package game

import (
	"context"
	"sync"

	"github.com/kokodi-server/internal/domain"
)

// SessionStore is the persistence boundary for session aggregates. Load must
// return an independent copy of the aggregate and Save must apply the whole
// aggregate atomically, so a failed operation never leaves partial mutation
// visible.
type SessionStore interface {
	LoadSession(ctx context.Context, id string) (*domain.Session, error)
	SaveSession(ctx context.Context, session *domain.Session) error
}

// UserStore is the user directory consumed by the engine.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UserByUsername(ctx context.Context, username string) (*domain.User, error)
	UserByID(ctx context.Context, id string) (*domain.User, error)
}

// Locker provides mutual exclusion per session id. Calls against the same id
// are serialized; calls against different ids proceed in parallel.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventSink receives game events after an operation commits. Implementations
// must not block; delivery is best-effort and never fails the operation.
type EventSink interface {
	Publish(event domain.GameEvent)
}

// MutexLocker is an in-process Locker keyed by session id.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewMutexLocker creates an in-process per-key locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, creating it on first use and dropping it
// once no caller holds or waits on it.
func (l *MutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}, nil
}
