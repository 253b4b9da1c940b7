package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// PostgresUserRepository implements the UserRepository interface using PostgreSQL
type PostgresUserRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewUserRepository creates a new PostgresUserRepository
func NewUserRepository(config *RepositoryConfig) repositories.UserRepository {
	return &PostgresUserRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// EnsureDemoUser finds or creates the singleton demo user and returns its id
func (r *PostgresUserRepository) EnsureDemoUser(ctx context.Context) (string, error) {
	if err := r.Ensure(ctx, models.DemoUserID); err != nil {
		return "", err
	}
	return models.DemoUserID, nil
}

// Ensure creates the user row when it does not exist yet
func (r *PostgresUserRepository) Ensure(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	return nil
}
