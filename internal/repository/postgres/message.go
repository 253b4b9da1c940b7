package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// PostgresMessageRepository implements the MessageRepository interface using PostgreSQL
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a message
func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, role, text, tool_name, tool_call_id, tool_args_json, tool_result_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Text,
		msg.ToolName,
		msg.ToolCallID,
		msg.ToolArgs,
		msg.ToolResult,
		msg.CreatedAt,
	).Scan(&msg.CreatedAt)

	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// ListByConversation returns all messages ordered oldest first
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, role, text, tool_name, tool_call_id, tool_args_json, tool_result_json, created_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Text,
			&msg.ToolName,
			&msg.ToolCallID,
			&msg.ToolArgs,
			&msg.ToolResult,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
