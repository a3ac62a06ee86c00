package domain

import "time"

// IndexEntry is one (player id, score) pair in the ordered score index.
// Entries with equal scores keep the index's natural order; there is no
// business tie-break rule.
type IndexEntry struct {
	PlayerID int64   `json:"player_id"`
	Score    float64 `json:"score"`
}

// LeaderboardResponse is the answer to a rank query. PlayerRank is the
// requested player's 1-based human rank, or null when no identifier was
// supplied or the player is not ranked. SurroundingPlayers is empty when
// the requested player already appears in TopPlayers.
type LeaderboardResponse struct {
	TopPlayers         []RankedPlayer `json:"topPlayers"`
	SurroundingPlayers []RankedPlayer `json:"surroundingPlayers"`
	PlayerRank         *int64         `json:"playerRank"`
}

// SuggestionsResponse is the answer to a name-fragment query
type SuggestionsResponse struct {
	Suggestions []PlayerOption `json:"suggestions"`
}

// ScoreEvent represents a scoring event for a player
type ScoreEvent struct {
	PlayerID  int64     `json:"player_id"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Payout is one winner's reward in a distribution run. Amount is an
// absolute balance, not an increment.
type Payout struct {
	PlayerID int64
	Rank     int64
	Amount   float64
}
