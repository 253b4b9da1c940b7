package repositories

import (
	"context"

	"marketbrief/internal/domain/models"
)

// ProfileRepository defines data access for user briefing profiles.
type ProfileRepository interface {
	// GetByUserID retrieves the profile for a user.
	// Returns nil (not an error) when no profile exists yet.
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)

	// Create inserts a profile row.
	Create(ctx context.Context, profile *models.Profile) error

	// Update overwrites all mutable fields of an existing profile.
	Update(ctx context.Context, profile *models.Profile) error
}
