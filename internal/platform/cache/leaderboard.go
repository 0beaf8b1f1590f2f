package cache

import (
	"context"
	"fmt"

	"algoforge/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// RedisLeaderboard projects user XP into a sorted set. Postgres stays the
// source of truth; the set can be rebuilt from users.xp.
type RedisLeaderboard struct {
	rdb *redis.Client
	key string
}

func NewRedisLeaderboard(rdb *redis.Client, key string) *RedisLeaderboard {
	return &RedisLeaderboard{rdb: rdb, key: key}
}

func (l *RedisLeaderboard) Add(ctx context.Context, userID string, xp int) error {
	if xp == 0 {
		return nil
	}
	if err := l.rdb.ZIncrBy(ctx, l.key, float64(xp), userID).Err(); err != nil {
		return fmt.Errorf("leaderboard incr %s: %w", userID, err)
	}
	return nil
}

// Top returns up to n entries ordered by XP, with Rank and XP filled in.
func (l *RedisLeaderboard) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	zs, err := l.rdb.ZRevRangeWithScores(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range: %w", err)
	}
	entries := make([]model.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, model.LeaderboardEntry{
			Rank:   i + 1,
			UserID: member,
			XP:     int(z.Score),
		})
	}
	return entries, nil
}

// Reset replaces the whole set, used when rebuilding from Postgres.
func (l *RedisLeaderboard) Reset(ctx context.Context, scores map[string]int) error {
	pipe := l.rdb.TxPipeline()
	pipe.Del(ctx, l.key)
	for userID, xp := range scores {
		if xp > 0 {
			pipe.ZAdd(ctx, l.key, redis.Z{Score: float64(xp), Member: userID})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard reset: %w", err)
	}
	return nil
}
