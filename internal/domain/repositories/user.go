package repositories

import (
	"context"
)

// UserRepository defines the minimal user data access the webhook needs.
type UserRepository interface {
	// EnsureDemoUser finds or creates the singleton demo user and returns
	// its id. Used only by the demo fallback path.
	EnsureDemoUser(ctx context.Context) (string, error)

	// Ensure creates the user row when it does not exist yet, so foreign
	// keys from conversations and watchlist items resolve.
	Ensure(ctx context.Context, userID string) error
}
