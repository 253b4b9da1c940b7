package repositories

import (
	"context"

	"marketbrief/internal/domain/models"
)

// ProcessedToolCallRepository is the idempotency ledger keyed by the
// external toolCallId. Terminal writes are conditional on the row still
// being in "processing" so a stale retry can never overwrite a newer
// terminal result.
type ProcessedToolCallRepository interface {
	// Start claims the ledger row for this delivery. When the id is new
	// the row is inserted in "processing" and claimed is true; when any
	// row already exists nothing is written and claimed is false, so
	// racing duplicate deliveries resolve to exactly one claimant.
	Start(ctx context.Context, call *models.ProcessedToolCall) (claimed bool, err error)

	// Succeed records the response and flips processing -> succeeded.
	// No-op when the row is already terminal.
	Succeed(ctx context.Context, toolCallID string, result models.JSONMap) error

	// Fail records the response and flips processing -> failed.
	// No-op when the row is already terminal.
	Fail(ctx context.Context, toolCallID string, result models.JSONMap) error

	// Get returns the ledger row, or nil when the id was never seen.
	Get(ctx context.Context, toolCallID string) (*models.ProcessedToolCall, error)
}
