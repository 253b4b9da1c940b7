package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// ConversationService manages conversations and their messages.
type ConversationService struct {
	convRepo  repositories.ConversationRepository
	msgRepo   repositories.MessageRepository
	userRepo  repositories.UserRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		userRepo:  userRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// List returns the user's conversations, most recently active first,
// without messages.
func (s *ConversationService) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.convRepo.ListByUser(ctx, userID)
}

// Get returns one conversation with its messages.
func (s *ConversationService) Get(ctx context.Context, id, userID string) (*models.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.msgRepo.ListByConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages
	return conv, nil
}

// Create starts a new empty conversation.
func (s *ConversationService) Create(ctx context.Context, userID string, title, summary *string) (*models.Conversation, error) {
	if err := s.userRepo.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		Summary:       summary,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Info("conversation created", "id", conv.ID, "user_id", userID)
	return conv, nil
}

// FindOrCreate returns the conversation with the given id, creating it when
// absent. The second return value reports whether a new row was created.
func (s *ConversationService) FindOrCreate(ctx context.Context, id, userID string) (*models.Conversation, bool, error) {
	conv, err := s.convRepo.GetByID(ctx, id, userID)
	if err == nil {
		return conv, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	if err := s.userRepo.Ensure(ctx, userID); err != nil {
		return nil, false, err
	}
	now := time.Now()
	conv = &models.Conversation{
		ID:            id,
		UserID:        userID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		// A concurrent request may have created it between our read and write.
		if existing, getErr := s.convRepo.GetByID(ctx, id, userID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return conv, true, nil
}

// AppendMessage adds a message and bumps the conversation's activity
// timestamp in one transaction. Voice sessions post messages under
// platform-generated conversation ids before any explicit create, so an
// unseen id creates the conversation on the way in. The first meaningful
// user message also titles the conversation.
func (s *ConversationService) AppendMessage(ctx context.Context, userID, conversationID string, msg *models.Message) (*models.Message, error) {
	if !models.ValidRole(msg.Role) || msg.Text == "" {
		return nil, fmt.Errorf("%w: role and text required", domain.ErrValidation)
	}
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id required", domain.ErrValidation)
	}

	conv, _, err := s.FindOrCreate(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	msg.ID = uuid.NewString()
	msg.ConversationID = conv.ID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var title *string
	if msg.Role == models.RoleUser && (conv.Title == nil || *conv.Title == "") {
		title = models.BuildTitle(msg.Text)
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.msgRepo.Create(txCtx, msg); err != nil {
			return err
		}
		return s.convRepo.Touch(txCtx, conv.ID, title)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// TranscriptEntry is one line of an imported voice transcript.
type TranscriptEntry struct {
	Role models.Role `json:"role"`
	Text string      `json:"text"`
	At   *time.Time  `json:"at,omitempty"`
}

// Import persists a complete transcript as one conversation. The title
// falls back to the first meaningful user line when none is given.
func (s *ConversationService) Import(ctx context.Context, userID string, title, summary *string, transcript []TranscriptEntry) (*models.Conversation, error) {
	if err := s.userRepo.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	if title == nil {
		for _, entry := range transcript {
			if entry.Role == models.RoleUser {
				if derived := models.BuildTitle(entry.Text); derived != nil {
					title = derived
					break
				}
			}
		}
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		Summary:       summary,
		CreatedAt:     now,
		LastMessageAt: now,
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.convRepo.Create(txCtx, conv); err != nil {
			return err
		}
		for _, entry := range transcript {
			role := entry.Role
			if !models.ValidRole(role) {
				role = models.RoleUser
			}
			createdAt := now
			if entry.At != nil {
				createdAt = *entry.At
			}
			msg := &models.Message{
				ID:             uuid.NewString(),
				ConversationID: conv.ID,
				Role:           role,
				Text:           entry.Text,
				CreatedAt:      createdAt,
			}
			if err := s.msgRepo.Create(txCtx, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transcript imported", "conversation_id", conv.ID, "user_id", userID, "messages", len(transcript))
	return conv, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
