package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leaderboard-rewards/internal/domain"
)

// indexKey is the sorted set holding the live ranking
const indexKey = "leaderboard:ranking"

// ScoreIndex is the ordered score index over one Redis sorted set.
// The whole structure may be absent (expired or cleared) at any time;
// absence is the warm-up trigger, not an error. Equal scores keep the
// sorted set's natural order (lexicographic by member), which is the
// documented tie policy.
type ScoreIndex struct {
	client *redis.Client
	logger *slog.Logger
}

// NewScoreIndex creates a score index over the given client
func NewScoreIndex(client *redis.Client, logger *slog.Logger) *ScoreIndex {
	return &ScoreIndex{
		client: client,
		logger: logger,
	}
}

// Load bulk-inserts entries and applies one expiry to the whole index.
// ZADD and EXPIRE run in a single pipeline so concurrent readers never
// observe a loaded index without its TTL.
func (s *ScoreIndex) Load(ctx context.Context, entries []domain.IndexEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, entry := range entries {
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  entry.Score,
			Member: memberFor(entry.PlayerID),
		})
	}
	pipe.Expire(ctx, indexKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("loading score index: %w", err)
	}
	return nil
}

// SetScore upserts a single player's score
func (s *ScoreIndex) SetScore(ctx context.Context, playerID int64, score float64) error {
	err := s.client.ZAdd(ctx, indexKey, redis.Z{
		Score:  score,
		Member: memberFor(playerID),
	}).Err()
	if err != nil {
		return fmt.Errorf("setting score: %w", err)
	}
	return nil
}

// TopN returns the top n entries in descending score order
func (s *ScoreIndex) TopN(ctx context.Context, n int) ([]domain.IndexEntry, error) {
	return s.RangeDesc(ctx, 0, int64(n)-1)
}

// RangeDesc returns entries between the zero-based descending positions
// start and stop, inclusive
func (s *ScoreIndex) RangeDesc(ctx context.Context, start, stop int64) ([]domain.IndexEntry, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, indexKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("getting index range: %w", err)
	}

	entries := make([]domain.IndexEntry, 0, len(results))
	for _, result := range results {
		id, err := strconv.ParseInt(result.Member.(string), 10, 64)
		if err != nil {
			s.logger.Warn("skipping malformed index member", "member", result.Member)
			continue
		}
		entries = append(entries, domain.IndexEntry{
			PlayerID: id,
			Score:    result.Score,
		})
	}
	return entries, nil
}

// Rank returns a player's zero-based ascending rank. The second return
// is false when the player is not in the index.
func (s *ScoreIndex) Rank(ctx context.Context, playerID int64) (int64, bool, error) {
	rank, err := s.client.ZRank(ctx, indexKey, memberFor(playerID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting player rank: %w", err)
	}
	return rank, true, nil
}

// Card returns the number of ranked players
func (s *ScoreIndex) Card(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting index cardinality: %w", err)
	}
	return count, nil
}

// Exists reports whether the index is currently present
func (s *ScoreIndex) Exists(ctx context.Context) (bool, error) {
	exists, err := s.client.Exists(ctx, indexKey).Result()
	if err != nil {
		return false, fmt.Errorf("checking index existence: %w", err)
	}
	return exists > 0, nil
}

// Clear deletes the whole index, starting a new ranking epoch
func (s *ScoreIndex) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, indexKey).Err(); err != nil {
		return fmt.Errorf("clearing score index: %w", err)
	}
	return nil
}

func memberFor(playerID int64) string {
	return strconv.FormatInt(playerID, 10)
}
