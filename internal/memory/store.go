// Package memory provides in-process implementations of the persistence
// boundary, used by tests and by the server's store-less development mode.
package memory

import (
	"context"
	"sync"

	"github.com/kokodi-server/internal/domain"
)

// Store keeps sessions and users in memory. Load returns deep copies, so a
// caller mutating a loaded aggregate changes nothing until it saves.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	users    map[string]*domain.User // keyed by id
	byName   map[string]string       // username -> id
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		users:    make(map[string]*domain.User),
		byName:   make(map[string]string),
	}
}

// LoadSession returns a copy of the stored aggregate.
func (s *Store) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return session.Clone(), nil
}

// SaveSession stores the whole aggregate, replacing any previous state.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session.Clone()
	return nil
}

// CreateUser registers a user, enforcing username uniqueness.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[user.Username]; taken {
		return domain.ErrUsernameTaken
	}
	stored := *user
	s.users[user.ID] = &stored
	s.byName[user.Username] = user.ID
	return nil
}

// UserByUsername resolves a username to its account.
func (s *Store) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := *s.users[id]
	return &user, nil
}

// UserByID looks up an account by id.
func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}
