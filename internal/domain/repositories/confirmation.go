package repositories

import (
	"context"

	"marketbrief/internal/domain/models"
)

// PendingConfirmationRepository stores confirm-before-run state between
// conversation turns. Backed by a shared table, never process memory:
// the webhook scales horizontally and any instance may see the next turn.
type PendingConfirmationRepository interface {
	// Upsert stores a pending confirmation with a fresh TTL, replacing any
	// existing record for the same (conversation, tool, ticker) key.
	Upsert(ctx context.Context, pending *models.PendingConfirmation) error

	// Get returns the live record for the exact key, deleting it first when
	// expired. When ticker is empty it scans the (conversation, tool) prefix
	// and returns the live record expiring last. Returns nil when none.
	Get(ctx context.Context, conversationID, toolName, ticker string) (*models.PendingConfirmation, error)

	// Clear deletes the exact key.
	Clear(ctx context.Context, conversationID, toolName, ticker string) error
}
