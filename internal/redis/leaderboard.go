package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kokodi-server/internal/domain"
)

const (
	winsKey      = "leaderboard:wins"
	usernamesKey = "leaderboard:usernames"
)

// IncrementWins credits one win to a user and remembers their username for
// display.
func (s *Service) IncrementWins(ctx context.Context, userID, username string) error {
	pipe := s.client.Pipeline()
	pipe.ZIncrBy(ctx, winsKey, 1, userID)
	pipe.HSet(ctx, usernamesKey, userID, username)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing wins: %w", err)
	}
	return nil
}

// TopWinners returns the n users with the most wins, best first.
func (s *Service) TopWinners(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, winsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top winners: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for i, z := range results {
		userID, ok := z.Member.(string)
		if !ok {
			continue
		}
		entry := domain.LeaderboardEntry{
			Rank:   int64(i + 1),
			UserID: userID,
			Wins:   int64(z.Score),
		}
		username, err := s.client.HGet(ctx, usernamesKey, userID).Result()
		if err == nil {
			entry.Username = username
		} else if err != redis.Nil {
			s.logger.Warn("failed to resolve leaderboard username", "user_id", userID, "error", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
