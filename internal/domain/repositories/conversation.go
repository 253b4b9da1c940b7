package repositories

import (
	"context"

	"marketbrief/internal/domain/models"
)

// ConversationRepository defines data access for conversations.
type ConversationRepository interface {
	// Create inserts a new conversation.
	Create(ctx context.Context, conv *models.Conversation) error

	// GetByID retrieves a conversation owned by userID, without messages.
	// Returns domain.ErrNotFound when absent or owned by someone else.
	GetByID(ctx context.Context, id, userID string) (*models.Conversation, error)

	// ListByUser returns the user's conversations ordered by last_message_at
	// descending, then created_at descending.
	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)

	// Touch bumps last_message_at and optionally sets the title when one is
	// provided and the conversation has none yet.
	Touch(ctx context.Context, id string, title *string) error
}

// MessageRepository defines data access for conversation messages.
type MessageRepository interface {
	// Create inserts a message.
	Create(ctx context.Context, msg *models.Message) error

	// ListByConversation returns all messages ordered by created_at ascending.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
}
