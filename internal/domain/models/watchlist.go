package models

import "time"

// WatchlistItem is one tracked ticker, unique per (user, ticker).
// Re-adding an existing ticker updates the reason instead of duplicating.
type WatchlistItem struct {
	UserID    string    `json:"-" db:"user_id"`
	Ticker    string    `json:"ticker" db:"ticker"`
	Reason    *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
