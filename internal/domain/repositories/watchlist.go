package repositories

import (
	"context"

	"marketbrief/internal/domain/models"
)

// WatchlistRepository defines data access for per-user watchlists.
type WatchlistRepository interface {
	// List returns the user's items ordered by created_at descending.
	List(ctx context.Context, userID string) ([]models.WatchlistItem, error)

	// Upsert adds a ticker, or updates its reason when already present.
	// The (user_id, ticker) pair is unique; concurrent identical adds
	// must resolve to a single row.
	Upsert(ctx context.Context, item *models.WatchlistItem) error

	// Remove deletes one ticker. Returns true when a row existed.
	Remove(ctx context.Context, userID, ticker string) (bool, error)

	// Clear deletes every item for the user and returns the count removed.
	Clear(ctx context.Context, userID string) (int64, error)
}
