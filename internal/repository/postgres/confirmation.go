package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// PostgresPendingConfirmationRepository implements the
// PendingConfirmationRepository interface using PostgreSQL
type PostgresPendingConfirmationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewPendingConfirmationRepository creates a new PostgresPendingConfirmationRepository
func NewPendingConfirmationRepository(config *RepositoryConfig) repositories.PendingConfirmationRepository {
	return &PostgresPendingConfirmationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Upsert stores a pending confirmation with a fresh TTL. The composite
// primary key guarantees at most one live row per (conversation, tool,
// ticker) even under concurrent identical requests.
func (r *PostgresPendingConfirmationRepository) Upsert(ctx context.Context, pending *models.PendingConfirmation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, tool_name, ticker, args, user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id, tool_name, ticker) DO UPDATE SET
			args = EXCLUDED.args,
			user_id = EXCLUDED.user_id,
			expires_at = EXCLUDED.expires_at
	`, r.tables.PendingConfirmations)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		pending.ConversationID,
		pending.ToolName,
		pending.Ticker,
		pending.Args,
		pending.UserID,
		pending.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pending confirmation: %w", err)
	}

	return nil
}

// Get returns the live record, deleting expired rows on the way.
// With an empty ticker it scans the (conversation, tool) prefix and returns
// the live row expiring last.
func (r *PostgresPendingConfirmationRepository) Get(ctx context.Context, conversationID, toolName, ticker string) (*models.PendingConfirmation, error) {
	executor := GetExecutor(ctx, r.pool)
	now := time.Now()

	if ticker != "" {
		query := fmt.Sprintf(`
			SELECT conversation_id, tool_name, ticker, args, user_id, expires_at
			FROM %s
			WHERE conversation_id = $1 AND tool_name = $2 AND ticker = $3
		`, r.tables.PendingConfirmations)

		var pending models.PendingConfirmation
		err := executor.QueryRow(ctx, query, conversationID, toolName, ticker).Scan(
			&pending.ConversationID,
			&pending.ToolName,
			&pending.Ticker,
			&pending.Args,
			&pending.UserID,
			&pending.ExpiresAt,
		)
		if err != nil {
			if IsPgNoRowsError(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("get pending confirmation: %w", err)
		}

		if pending.Expired(now) {
			if err := r.Clear(ctx, conversationID, toolName, ticker); err != nil {
				return nil, err
			}
			return nil, nil
		}

		return &pending, nil
	}

	query := fmt.Sprintf(`
		SELECT conversation_id, tool_name, ticker, args, user_id, expires_at
		FROM %s
		WHERE conversation_id = $1 AND tool_name = $2 AND expires_at > $3
		ORDER BY expires_at DESC
		LIMIT 1
	`, r.tables.PendingConfirmations)

	var pending models.PendingConfirmation
	err := executor.QueryRow(ctx, query, conversationID, toolName, now).Scan(
		&pending.ConversationID,
		&pending.ToolName,
		&pending.Ticker,
		&pending.Args,
		&pending.UserID,
		&pending.ExpiresAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending confirmation: %w", err)
	}

	return &pending, nil
}

// Clear deletes the exact key
func (r *PostgresPendingConfirmationRepository) Clear(ctx context.Context, conversationID, toolName, ticker string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE conversation_id = $1 AND tool_name = $2 AND ticker = $3
	`, r.tables.PendingConfirmations)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, conversationID, toolName, ticker); err != nil {
		return fmt.Errorf("clear pending confirmation: %w", err)
	}

	return nil
}
