package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/postgres"
	"github.com/kokodi-server/internal/redis"
)

const creditBatchSize = 100

// LeaderboardWorker periodically credits finished games to the Redis wins
// leaderboard. Crediting is idempotent per session: a game is marked synced
// in PostgreSQL only after its winner has been counted.
type LeaderboardWorker struct {
	redis    *redis.Service
	postgres *postgres.Repository
	config   *config.LeaderboardConfig
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLeaderboardWorker creates a new leaderboard worker
func NewLeaderboardWorker(
	redis *redis.Service,
	postgres *postgres.Repository,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardWorker {
	return &LeaderboardWorker{
		redis:    redis,
		postgres: postgres,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background credit loop
func (w *LeaderboardWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("leaderboard worker started", "interval", w.config.SyncInterval)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop and waits for the current pass to finish
func (w *LeaderboardWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return nil
}

func (w *LeaderboardWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.CreditFinishedGames(ctx); err != nil {
				w.logger.Error("leaderboard credit pass failed", "error", err)
			}
		}
	}
}

// CreditFinishedGames finds finished sessions that have not been counted yet
// and credits each winner with one win.
func (w *LeaderboardWorker) CreditFinishedGames(ctx context.Context) error {
	games, err := w.postgres.UnsyncedFinishedGames(ctx, creditBatchSize)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		return nil
	}

	credited := make([]string, 0, len(games))
	for _, game := range games {
		if err := w.redis.IncrementWins(ctx, game.UserID, game.Username); err != nil {
			w.logger.Warn("failed to credit win",
				"session_id", game.SessionID,
				"user_id", game.UserID,
				"error", err,
			)
			continue
		}
		credited = append(credited, game.SessionID)
	}

	if err := w.postgres.MarkLeaderboardSynced(ctx, credited); err != nil {
		return err
	}

	w.logger.Info("credited finished games", "count", len(credited))
	return nil
}
