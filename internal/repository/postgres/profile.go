package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// PostgresProfileRepository implements the ProfileRepository interface using PostgreSQL
type PostgresProfileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewProfileRepository creates a new PostgresProfileRepository
func NewProfileRepository(config *RepositoryConfig) repositories.ProfileRepository {
	return &PostgresProfileRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetByUserID retrieves the profile for a user.
// Returns nil (not an error) when no profile exists yet.
func (r *PostgresProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := fmt.Sprintf(`
		SELECT user_id, risk_tolerance, horizon, brief_style, experience, sectors, constraints, created_at, updated_at
		FROM %s
		WHERE user_id = $1
	`, r.tables.Profiles)

	var profile models.Profile
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.RiskTolerance,
		&profile.Horizon,
		&profile.BriefStyle,
		&profile.Experience,
		&profile.Sectors,
		&profile.Constraints,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &profile, nil
}

// Create inserts a profile row
func (r *PostgresProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, risk_tolerance, horizon, brief_style, experience, sectors, constraints, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, r.tables.Profiles)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		profile.UserID,
		profile.RiskTolerance,
		profile.Horizon,
		profile.BriefStyle,
		profile.Experience,
		profile.Sectors,
		profile.Constraints,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      "profile already exists",
				ResourceType: "profile",
				ResourceID:   profile.UserID,
			}
		}
		return fmt.Errorf("create profile: %w", err)
	}

	return nil
}

// Update overwrites all mutable fields of an existing profile
func (r *PostgresProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET risk_tolerance = $2, horizon = $3, brief_style = $4, experience = $5,
		    sectors = $6, constraints = $7, updated_at = now()
		WHERE user_id = $1
		RETURNING created_at, updated_at
	`, r.tables.Profiles)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		profile.UserID,
		profile.RiskTolerance,
		profile.Horizon,
		profile.BriefStyle,
		profile.Experience,
		profile.Sectors,
		profile.Constraints,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("profile for user %s: %w", profile.UserID, domain.ErrNotFound)
		}
		return fmt.Errorf("update profile: %w", err)
	}

	return nil
}
