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

// PostgresConversationRepository implements the ConversationRepository interface using PostgreSQL
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new conversation
func (r *PostgresConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, summary, created_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, last_message_at
	`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.Summary,
		conv.CreatedAt,
		conv.LastMessageAt,
	).Scan(&conv.CreatedAt, &conv.LastMessageAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("conversation %s already exists", conv.ID),
				ResourceType: "conversation",
				ResourceID:   conv.ID,
			}
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// GetByID retrieves a conversation owned by userID
func (r *PostgresConversationRepository) GetByID(ctx context.Context, id, userID string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, summary, created_at, last_message_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Conversations)

	var conv models.Conversation
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.Summary,
		&conv.CreatedAt,
		&conv.LastMessageAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// ListByUser returns the user's conversations, most recently active first
func (r *PostgresConversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, summary, created_at, last_message_at
		FROM %s
		WHERE user_id = $1
		ORDER BY last_message_at DESC, created_at DESC
	`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.Summary,
			&conv.CreatedAt,
			&conv.LastMessageAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

// Touch bumps last_message_at, setting the title only when the conversation
// has none yet
func (r *PostgresConversationRepository) Touch(ctx context.Context, id string, title *string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET last_message_at = now(),
		    title = CASE WHEN title IS NULL OR btrim(title) = '' THEN COALESCE($2, title) ELSE title END
		WHERE id = $1
	`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
