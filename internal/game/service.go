package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
)

// Service is the turn engine: it drives the session lifecycle and turn
// resolution against aggregates loaded through the persistence boundary.
// Every operation is atomic; on failure the stored aggregate is unchanged.
type Service struct {
	sessions SessionStore
	users    UserStore
	locks    Locker
	cfg      *config.GameConfig
	logger   *slog.Logger

	rng   domain.Shuffler
	sinks []EventSink
	now   func() time.Time
	newID func() string
}

// NewService creates a new turn engine.
func NewService(
	sessions SessionStore,
	users UserStore,
	locks Locker,
	cfg *config.GameConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		users:    users,
		locks:    locks,
		cfg:      cfg,
		logger:   logger,
		rng:      domain.ShuffleFunc(rand.Shuffle),
		sinks:    nil,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetShuffler replaces the random source used for deck building. The default
// is the shared math/rand source; tests inject a seeded *rand.Rand.
func (s *Service) SetShuffler(rng domain.Shuffler) {
	s.rng = rng
}

// AddSink registers a sink for committed game events.
func (s *Service) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

func (s *Service) publish(event domain.GameEvent) {
	for _, sink := range s.sinks {
		sink.Publish(event)
	}
}

// CreateGame creates a session with the caller as its only player and
// creator (join order 0).
func (s *Service) CreateGame(ctx context.Context, username string) (*domain.Session, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolving creator: %w", err)
	}

	now := s.now()
	session := &domain.Session{
		ID:     s.newID(),
		Status: domain.StatusWaitingForPlayers,
		Players: []domain.Player{{
			ID:        s.newID(),
			UserID:    user.ID,
			Username:  user.Username,
			Name:      user.Name,
			JoinOrder: 0,
		}},
		CurrentPlayerIndex: 0,
		// Meaningless until a second player joins; never dereferenced
		// before start.
		NextPlayerIndex: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logger.Info("game created", "game_id", session.ID, "creator", user.Username)
	s.publish(domain.GameEvent{
		Type:      domain.EventGameCreated,
		GameID:    session.ID,
		UserID:    user.ID,
		PlayerID:  session.Players[0].ID,
		Timestamp: now,
	})

	return session, nil
}

// JoinGame adds the caller to a waiting session. Preconditions are checked
// in order: session exists, waiting status, capacity, no duplicate seat.
func (s *Service) JoinGame(ctx context.Context, gameID, username string) (*domain.Session, error) {
	unlock, err := s.locks.Lock(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}
	defer unlock()

	session, err := s.sessions.LoadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if session.Status != domain.StatusWaitingForPlayers {
		return nil, domain.ErrGameNotWaiting
	}
	if len(session.Players) >= s.cfg.MaxPlayers {
		return nil, domain.ErrGameFull
	}

	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	if session.HasPlayer(user.Username) {
		return nil, domain.ErrAlreadyJoined
	}

	player := domain.Player{
		ID:        s.newID(),
		UserID:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		JoinOrder: len(session.Players),
	}
	session.Players = append(session.Players, player)

	// Rotation becomes meaningful once a second player exists.
	if len(session.Players) > 1 {
		session.NextPlayerIndex = 1
	}
	session.UpdatedAt = s.now()

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logger.Info("player joined", "game_id", session.ID, "username", user.Username, "join_order", player.JoinOrder)
	s.publish(domain.GameEvent{
		Type:      domain.EventPlayerJoined,
		GameID:    session.ID,
		UserID:    user.ID,
		PlayerID:  player.ID,
		Timestamp: session.UpdatedAt,
	})

	return session, nil
}

// StartGame transitions a waiting session to IN_PROGRESS, builds and attaches
// the shuffled deck, and resets the rotation pointers. Only the creator (the
// player with join order 0) may start.
func (s *Service) StartGame(ctx context.Context, gameID, username string) (*domain.Session, error) {
	unlock, err := s.locks.Lock(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}
	defer unlock()

	session, err := s.sessions.LoadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if session.Status != domain.StatusWaitingForPlayers {
		return nil, domain.ErrGameNotWaiting
	}
	if len(session.Players) < s.cfg.MinPlayers {
		return nil, domain.ErrNotEnoughPlayers
	}
	if session.Players[0].Username != username {
		return nil, domain.ErrNotCreator
	}

	session.Deck = domain.NewDeck(s.rng, s.newID)
	session.Status = domain.StatusInProgress
	session.CurrentPlayerIndex = 0
	session.NextPlayerIndex = 1
	session.UpdatedAt = s.now()

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logger.Info("game started", "game_id", session.ID, "players", len(session.Players))
	s.publish(domain.GameEvent{
		Type:      domain.EventGameStarted,
		GameID:    session.ID,
		Timestamp: session.UpdatedAt,
	})

	return session, nil
}

// GetStatus returns the session read-only. Only session members may look.
func (s *Service) GetStatus(ctx context.Context, gameID, username string) (*domain.Session, error) {
	session, err := s.sessions.LoadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if !session.HasPlayer(username) {
		return nil, domain.ErrNotAPlayer
	}

	return session, nil
}
