package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kokodi-server/internal/config"
)

// Service provides Redis-based coordination for the game server: per-session
// locks, session snapshot caching, and the wins leaderboard.
type Service struct {
	client   *redis.Client
	logger   *slog.Logger
	lockTTL  time.Duration
	cacheTTL time.Duration
}

// NewService creates a new Redis service
func NewService(cfg *config.RedisConfig, logger *slog.Logger) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Service{
		client:   client,
		logger:   logger,
		lockTTL:  cfg.LockTTL,
		cacheTTL: cfg.CacheTTL,
	}, nil
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}

// lockKey returns the Redis key for a session's lock
func (s *Service) lockKey(sessionID string) string {
	return fmt.Sprintf("game:%s:lock", sessionID)
}

// sessionKey returns the Redis key for a cached session snapshot
func (s *Service) sessionKey(sessionID string) string {
	return fmt.Sprintf("game:%s:state", sessionID)
}

// releaseScript deletes a lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock acquires the per-session lock, polling until it is free or the
// context ends. The lock expires after the configured TTL so a crashed
// holder cannot wedge a session forever.
func (s *Service) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := s.lockKey(sessionID)
	token := uuid.NewString()

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquiring lock: %w", ctx.Err())
		case <-time.After(25 * time.Millisecond):
		}
	}

	return func() {
		if err := releaseScript.Run(context.Background(), s.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			s.logger.Warn("failed to release session lock", "session_id", sessionID, "error", err)
		}
	}, nil
}
