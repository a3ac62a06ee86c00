package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leaderboard-rewards/internal/config"
	"github.com/leaderboard-rewards/internal/domain"
)

// PlayerRepository is the durable player store the engine depends on
type PlayerRepository interface {
	CreatePlayer(ctx context.Context, name, country string, money float64) (*domain.Player, error)
	GetPlayer(ctx context.Context, playerID int64) (*domain.Player, error)
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	ListRanked(ctx context.Context) ([]domain.IndexEntry, error)
	SearchByName(ctx context.Context, fragment string, limit int) ([]domain.PlayerOption, error)
	ListByIDs(ctx context.Context, playerIDs []int64) ([]domain.Player, error)
	IncrementMoney(ctx context.Context, playerID int64, delta float64) (*domain.Player, error)
	ApplyRewards(ctx context.Context, payouts []domain.Payout) error
}

// ScoreIndex is the shared ordered score index
type ScoreIndex interface {
	Load(ctx context.Context, entries []domain.IndexEntry, ttl time.Duration) error
	SetScore(ctx context.Context, playerID int64, score float64) error
	TopN(ctx context.Context, n int) ([]domain.IndexEntry, error)
	RangeDesc(ctx context.Context, start, stop int64) ([]domain.IndexEntry, error)
	Rank(ctx context.Context, playerID int64) (int64, bool, error)
	Card(ctx context.Context) (int64, error)
	Exists(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// Lock is a named, time-boxed exclusive lock
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RewardPool is the durable reward accumulator
type RewardPool interface {
	Add(ctx context.Context, amount float64) error
	Value(ctx context.Context) (float64, error)
	Reset(ctx context.Context) error
}

// RateLimiter bounds rank queries per player identifier
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Broadcaster pushes live ranking events to connected clients
type Broadcaster interface {
	BroadcastScoreUpdate(playerID int64, money float64)
	BroadcastRewardsDistributed(pool float64, winners int)
}

// Reward shares for the podium ranks; ranks 4..topPlayersCount share
// the remainder proportionally via (101-rank)/5046.
var podiumShares = []float64{0.20, 0.15, 0.10}

// rewardDivisor is the sum of 1..97, the weights of ranks 4..100
const rewardDivisor = 5046

// LeaderboardService implements the ranking and reward distribution
// engine over an injected store, index, locks, and pool
type LeaderboardService struct {
	players        PlayerRepository
	index          ScoreIndex
	warmupLock     Lock
	distributeLock Lock
	pool           RewardPool
	limiter        RateLimiter
	hub            Broadcaster
	cfg            *config.LeaderboardConfig
	logger         *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	players PlayerRepository,
	index ScoreIndex,
	warmupLock Lock,
	distributeLock Lock,
	pool RewardPool,
	limiter RateLimiter,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		players:        players,
		index:          index,
		warmupLock:     warmupLock,
		distributeLock: distributeLock,
		pool:           pool,
		limiter:        limiter,
		cfg:            cfg,
		logger:         logger,
	}
}

// SetHub attaches a broadcaster for live updates
func (s *LeaderboardService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SearchPlayers returns suggestion projections for a name fragment.
// No ranking logic is involved.
func (s *LeaderboardService) SearchPlayers(ctx context.Context, fragment string) (*domain.SuggestionsResponse, error) {
	options, err := s.players.SearchByName(ctx, fragment, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching players: %w", err)
	}
	if options == nil {
		options = []domain.PlayerOption{}
	}
	return &domain.SuggestionsResponse{Suggestions: options}, nil
}

// GetPlayerRanks answers a rank query. playerID <= 0 means "just the
// top of the board". A nil response with a nil error signals the caller
// was rate limited and should back off.
func (s *LeaderboardService) GetPlayerRanks(ctx context.Context, playerID int64) (*domain.LeaderboardResponse, error) {
	allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("rate_limit:player_rank:%d", playerID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardFetch, err)
	}
	if !allowed {
		s.logger.Warn("rate limit exceeded for player rank request", "player_id", playerID)
		return nil, nil
	}

	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	topEntries, err := s.index.TopN(ctx, s.cfg.TopPlayersCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardFetch, err)
	}

	var playerRank *int64
	var surroundingEntries []domain.IndexEntry

	if playerID > 0 {
		player, err := s.players.GetPlayer(ctx, playerID)
		if err != nil && !errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardFetch, err)
		}
		if player != nil {
			rank, err := s.humanRank(ctx, player.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardFetch, err)
			}
			playerRank = rank
			if rank != nil && *rank > int64(s.cfg.TopPlayersCount) {
				surroundingEntries, err = s.surroundingPlayers(ctx, *rank)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardFetch, err)
				}
			}
		}
	}

	response, err := s.assembleResponse(ctx, topEntries, surroundingEntries, playerRank)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardFetch, err)
	}
	return response, nil
}

// ensureIndex triggers warm-up when the index is absent. Absence after
// a denied lock is accepted: another worker is warming the cache and
// callers treat the empty index as "ranking temporarily unavailable".
func (s *LeaderboardService) ensureIndex(ctx context.Context) error {
	exists, err := s.index.Exists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLeaderboardInit, err)
	}
	if exists {
		return nil
	}
	return s.warmUp(ctx)
}

// warmUp rebuilds the index from the durable store under the warmup
// lock. Exactly one concurrent caller performs the load.
func (s *LeaderboardService) warmUp(ctx context.Context) error {
	granted, err := s.warmupLock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLeaderboardInit, err)
	}
	if !granted {
		s.logger.Info("leaderboard warm-up skipped, lock held by another worker")
		return nil
	}
	defer func() {
		if err := s.warmupLock.Release(ctx); err != nil {
			s.logger.Error("failed to release warmup lock", "error", err)
		}
	}()

	// Another worker may have finished between our existence check and
	// the lock grant.
	exists, err := s.index.Exists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLeaderboardInit, err)
	}
	if exists {
		return nil
	}

	entries, err := s.players.ListRanked(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLeaderboardInit, err)
	}
	if len(entries) == 0 {
		return nil
	}

	if err := s.index.Load(ctx, entries, s.cfg.CacheTTL); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLeaderboardInit, err)
	}

	s.logger.Info("leaderboard initialized", "players", len(entries))
	return nil
}

// humanRank converts the index's zero-based ascending rank to the
// 1-based descending rank shown to users: cardinality - ascendingRank,
// so the top scorer maps to 1. Nil when the player is not ranked.
func (s *LeaderboardService) humanRank(ctx context.Context, playerID int64) (*int64, error) {
	rank, ranked, err := s.index.Rank(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if !ranked {
		return nil, nil
	}
	card, err := s.index.Card(ctx)
	if err != nil {
		return nil, err
	}
	human := card - rank
	return &human, nil
}

// surroundingPlayers fetches the neighborhood window around a human
// rank outside the top window: 3 entries above and 2 below, clamped to
// the index bounds, in descending order.
func (s *LeaderboardService) surroundingPlayers(ctx context.Context, humanRank int64) ([]domain.IndexEntry, error) {
	card, err := s.index.Card(ctx)
	if err != nil {
		return nil, err
	}

	position := humanRank - 1 // zero-based descending position
	start := position - int64(s.cfg.SurroundingAbove)
	if start < 0 {
		start = 0
	}
	end := position + int64(s.cfg.SurroundingBelow)
	if end > card-1 {
		end = card - 1
	}

	return s.index.RangeDesc(ctx, start, end)
}

// assembleResponse joins index entries against the durable store for
// display attributes and derives each player's human rank
// independently
func (s *LeaderboardService) assembleResponse(
	ctx context.Context,
	topEntries, surroundingEntries []domain.IndexEntry,
	playerRank *int64,
) (*domain.LeaderboardResponse, error) {
	seen := make(map[int64]bool)
	var allIDs []int64
	for _, entry := range append(append([]domain.IndexEntry{}, topEntries...), surroundingEntries...) {
		if !seen[entry.PlayerID] {
			seen[entry.PlayerID] = true
			allIDs = append(allIDs, entry.PlayerID)
		}
	}

	players, err := s.players.ListByIDs(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	playersByID := make(map[int64]domain.Player, len(players))
	for _, player := range players {
		playersByID[player.ID] = player
	}

	ranksByID := make(map[int64]int64, len(allIDs))
	for _, id := range allIDs {
		rank, err := s.humanRank(ctx, id)
		if err != nil {
			return nil, err
		}
		if rank != nil {
			ranksByID[id] = *rank
		}
	}

	return &domain.LeaderboardResponse{
		TopPlayers:         formatPlayers(topEntries, playersByID, ranksByID),
		SurroundingPlayers: formatPlayers(surroundingEntries, playersByID, ranksByID),
		PlayerRank:         playerRank,
	}, nil
}

// formatPlayers enriches index entries with display attributes
func formatPlayers(
	entries []domain.IndexEntry,
	playersByID map[int64]domain.Player,
	ranksByID map[int64]int64,
) []domain.RankedPlayer {
	ranked := make([]domain.RankedPlayer, 0, len(entries))
	for _, entry := range entries {
		name, country := "Unknown", "Unknown"
		if player, ok := playersByID[entry.PlayerID]; ok {
			name, country = player.Name, player.Country
		}
		ranked = append(ranked, domain.RankedPlayer{
			ID:      entry.PlayerID,
			Name:    name,
			Country: country,
			Rank:    ranksByID[entry.PlayerID],
			Money:   domain.FormatMoney(entry.Score),
		})
	}
	return ranked
}

// ListPlayers returns all players from the durable store
func (s *LeaderboardService) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	return s.players.ListPlayers(ctx)
}

// CreatePlayer registers a new player. A warm index picks the player
// up immediately; a cold one does at the next warm-up.
func (s *LeaderboardService) CreatePlayer(ctx context.Context, name, country string, money float64) (*domain.Player, error) {
	if name == "" {
		return nil, domain.ErrInvalidRequest
	}
	if money < 0 {
		return nil, domain.ErrInvalidAmount
	}

	player, err := s.players.CreatePlayer(ctx, name, country, money)
	if err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}

	exists, err := s.index.Exists(ctx)
	if err != nil {
		s.logger.Warn("failed to check index after player create", "error", err)
	} else if exists {
		if err := s.index.SetScore(ctx, player.ID, player.Money); err != nil {
			s.logger.Warn("failed to index new player", "player_id", player.ID, "error", err)
		}
	}

	return player, nil
}

// UpdatePlayerMoney applies a scoring event: the durable balance is
// incremented, the index entry mirrors the new balance when the index
// is present, and the reward pool accrues its fraction of the earned
// amount. Index and pool failures do not fail the durable update.
func (s *LeaderboardService) UpdatePlayerMoney(ctx context.Context, playerID int64, amount float64) (*domain.Player, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	player, err := s.players.IncrementMoney(ctx, playerID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating player money: %w", err)
	}

	// An absent index is the warm-up trigger; writing into it here
	// would create a partial, TTL-less ranking.
	exists, err := s.index.Exists(ctx)
	if err != nil {
		s.logger.Warn("failed to check index before score upsert", "error", err)
	} else if exists {
		if err := s.index.SetScore(ctx, player.ID, player.Money); err != nil {
			s.logger.Warn("failed to upsert score in index", "player_id", player.ID, "error", err)
		}
	}

	if err := s.pool.Add(ctx, amount*s.cfg.PoolFraction); err != nil {
		s.logger.Warn("failed to accrue reward pool", "player_id", player.ID, "error", err)
	}

	if s.hub != nil {
		s.hub.BroadcastScoreUpdate(player.ID, player.Money)
	}

	return player, nil
}

// DistributeWeeklyRewards pays the reward pool out to the top-ranked
// players and resets the ranking epoch. The distribute lock guarantees
// a single active run; a denied acquire is a no-op, not an error.
func (s *LeaderboardService) DistributeWeeklyRewards(ctx context.Context) error {
	granted, err := s.distributeLock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRewardDistribution, err)
	}
	if !granted {
		s.logger.Info("reward distribution skipped, another run is in progress")
		return nil
	}
	defer func() {
		if err := s.distributeLock.Release(ctx); err != nil {
			s.logger.Error("failed to release distribute lock", "error", err)
		}
	}()

	pool, err := s.pool.Value(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRewardDistribution, err)
	}
	if pool == 0 {
		s.logger.Info("no rewards to distribute")
		return nil
	}

	topEntries, err := s.index.TopN(ctx, s.cfg.TopPlayersCount)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRewardDistribution, err)
	}

	payouts := make([]domain.Payout, 0, len(topEntries))
	for i, entry := range topEntries {
		rank := int64(i + 1)
		payouts = append(payouts, domain.Payout{
			PlayerID: entry.PlayerID,
			Rank:     rank,
			Amount:   rewardFor(rank, pool),
		})
	}

	if err := s.players.ApplyRewards(ctx, payouts); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRewardDistribution, err)
	}

	if err := s.pool.Reset(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRewardDistribution, err)
	}
	if err := s.index.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRewardDistribution, err)
	}

	if s.hub != nil {
		s.hub.BroadcastRewardsDistributed(pool, len(payouts))
	}

	s.logger.Info("weekly rewards distributed and leaderboard reset",
		"pool", pool,
		"winners", len(payouts),
	)
	return nil
}

// rewardFor computes the payout for a 1-based rank out of the pool.
// Ranks past 100 earn nothing; the divisor gives the rank-100 player
// the smallest non-zero share.
func rewardFor(rank int64, pool float64) float64 {
	if rank <= int64(len(podiumShares)) {
		return pool * podiumShares[rank-1]
	}
	if rank <= 100 {
		return pool * float64(101-rank) / rewardDivisor
	}
	return 0
}
