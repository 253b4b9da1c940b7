package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// PostgresProcessedToolCallRepository implements the
// ProcessedToolCallRepository interface using PostgreSQL
type PostgresProcessedToolCallRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewProcessedToolCallRepository creates a new PostgresProcessedToolCallRepository
func NewProcessedToolCallRepository(config *RepositoryConfig) repositories.ProcessedToolCallRepository {
	return &PostgresProcessedToolCallRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Start claims the ledger row with an insert that backs off on conflict.
// The conflict arbitration happens inside postgres, so two deliveries
// racing on the same id can never both see a fresh claim: exactly one
// insert lands and reports a row affected.
func (r *PostgresProcessedToolCallRepository) Start(ctx context.Context, call *models.ProcessedToolCall) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (tool_call_id, status, conversation_id, user_id, tool_name, event_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tool_call_id) DO NOTHING
	`, r.tables.ProcessedToolCalls)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		call.ToolCallID,
		models.ToolCallProcessing,
		call.ConversationID,
		call.UserID,
		call.ToolName,
		call.EventID,
	)
	if err != nil {
		return false, fmt.Errorf("start tool call: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Succeed records the response and flips processing -> succeeded.
// The status guard makes concurrent terminal writes resolve to exactly one
// winner; the loser's update matches zero rows.
func (r *PostgresProcessedToolCallRepository) Succeed(ctx context.Context, toolCallID string, result models.JSONMap) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, result_json = $3, error_json = NULL, updated_at = now()
		WHERE tool_call_id = $1 AND status = $4
	`, r.tables.ProcessedToolCalls)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, toolCallID, models.ToolCallSucceeded, result, models.ToolCallProcessing); err != nil {
		return fmt.Errorf("mark tool call succeeded: %w", err)
	}

	return nil
}

// Fail records the response and flips processing -> failed
func (r *PostgresProcessedToolCallRepository) Fail(ctx context.Context, toolCallID string, result models.JSONMap) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, error_json = $3, result_json = NULL, updated_at = now()
		WHERE tool_call_id = $1 AND status = $4
	`, r.tables.ProcessedToolCalls)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, toolCallID, models.ToolCallFailed, result, models.ToolCallProcessing); err != nil {
		return fmt.Errorf("mark tool call failed: %w", err)
	}

	return nil
}

// Get returns the ledger row, or nil when the id was never seen
func (r *PostgresProcessedToolCallRepository) Get(ctx context.Context, toolCallID string) (*models.ProcessedToolCall, error) {
	query := fmt.Sprintf(`
		SELECT tool_call_id, status, result_json, error_json, conversation_id, user_id, tool_name, event_id, created_at, updated_at
		FROM %s
		WHERE tool_call_id = $1
	`, r.tables.ProcessedToolCalls)

	var call models.ProcessedToolCall
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, toolCallID).Scan(
		&call.ToolCallID,
		&call.Status,
		&call.ResultJSON,
		&call.ErrorJSON,
		&call.ConversationID,
		&call.UserID,
		&call.ToolName,
		&call.EventID,
		&call.CreatedAt,
		&call.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tool call: %w", err)
	}

	return &call, nil
}
