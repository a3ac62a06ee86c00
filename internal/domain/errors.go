package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrInvalidPlayerID    = errors.New("invalid player id")
	ErrInvalidAmount      = errors.New("earned amount must be positive")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
	ErrLeaderboardInit    = errors.New("failed to initialize leaderboard data")
	ErrLeaderboardFetch   = errors.New("failed to fetch leaderboard data")
	ErrRewardDistribution = errors.New("failed to distribute weekly rewards")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound)
}
