package domain

import (
	"fmt"
	"time"
)

// Player represents a player row in the durable store
type Player struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Money     float64   `json:"money"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerOption is a search-suggestion projection over Player,
// independent of ranking
type PlayerOption struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// RankedPlayer is a leaderboard row enriched with display attributes.
// Money is serialized with two decimal places for display; storage
// keeps the raw number.
type RankedPlayer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Rank    int64  `json:"rank"`
	Money   string `json:"money"`
}

// FormatMoney renders a balance the way query responses expect it
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}
