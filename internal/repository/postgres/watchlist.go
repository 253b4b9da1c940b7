package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// PostgresWatchlistRepository implements the WatchlistRepository interface using PostgreSQL
type PostgresWatchlistRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewWatchlistRepository creates a new PostgresWatchlistRepository
func NewWatchlistRepository(config *RepositoryConfig) repositories.WatchlistRepository {
	return &PostgresWatchlistRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// List returns the user's items, newest first
func (r *PostgresWatchlistRepository) List(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	query := fmt.Sprintf(`
		SELECT user_id, ticker, reason, created_at
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, r.tables.WatchlistItems)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.UserID, &item.Ticker, &item.Reason, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}

	return items, nil
}

// Upsert adds a ticker, or updates its reason when already present.
// The (user_id, ticker) primary key makes concurrent identical adds
// resolve to a single row.
func (r *PostgresWatchlistRepository) Upsert(ctx context.Context, item *models.WatchlistItem) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, ticker, reason, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, ticker) DO UPDATE SET
			reason = EXCLUDED.reason
		RETURNING created_at
	`, r.tables.WatchlistItems)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, item.UserID, item.Ticker, item.Reason).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert watchlist item: %w", err)
	}

	return nil
}

// Remove deletes one ticker. Returns true when a row existed.
func (r *PostgresWatchlistRepository) Remove(ctx context.Context, userID, ticker string) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = $1 AND ticker = $2
	`, r.tables.WatchlistItems)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, userID, ticker)
	if err != nil {
		return false, fmt.Errorf("remove watchlist item: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Clear deletes every item for the user and returns the count removed
func (r *PostgresWatchlistRepository) Clear(ctx context.Context, userID string) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = $1
	`, r.tables.WatchlistItems)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("clear watchlist: %w", err)
	}

	return tag.RowsAffected(), nil
}
