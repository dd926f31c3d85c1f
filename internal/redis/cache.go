package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/kokodi-server/internal/domain"
	"github.com/kokodi-server/internal/game"
)

// CachedStore decorates a SessionStore with a write-through Redis snapshot
// cache. Saves go to the inner store first and then refresh the cache, so a
// cache fault can only cause a miss, never stale success.
type CachedStore struct {
	inner game.SessionStore
	redis *Service
}

// NewCachedStore wraps store with the snapshot cache.
func NewCachedStore(store game.SessionStore, redis *Service) *CachedStore {
	return &CachedStore{inner: store, redis: redis}
}

// LoadSession returns the cached snapshot when present, falling back to the
// inner store and repopulating the cache on a miss.
func (c *CachedStore) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	key := c.redis.sessionKey(id)

	data, err := c.redis.client.Get(ctx, key).Bytes()
	if err == nil {
		var session domain.Session
		if err := json.Unmarshal(data, &session); err == nil {
			return &session, nil
		}
		c.redis.logger.Warn("corrupt session snapshot in cache", "session_id", id)
	} else if err != redis.Nil {
		c.redis.logger.Warn("session cache read failed", "session_id", id, "error", err)
	}

	session, err := c.inner.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache(ctx, session)
	return session, nil
}

// SaveSession persists through the inner store and refreshes the snapshot.
func (c *CachedStore) SaveSession(ctx context.Context, session *domain.Session) error {
	if err := c.inner.SaveSession(ctx, session); err != nil {
		return err
	}
	c.cache(ctx, session)
	return nil
}

func (c *CachedStore) cache(ctx context.Context, session *domain.Session) {
	data, err := json.Marshal(session)
	if err != nil {
		c.redis.logger.Warn("failed to marshal session snapshot", "session_id", session.ID, "error", err)
		return
	}
	key := c.redis.sessionKey(session.ID)
	if err := c.redis.client.Set(ctx, key, data, c.redis.cacheTTL).Err(); err != nil {
		c.redis.logger.Warn("session cache write failed", "session_id", session.ID, "error", err)
	}
}

var _ game.SessionStore = (*CachedStore)(nil)
