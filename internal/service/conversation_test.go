package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

type stubConvRepo struct {
	conversations map[string]*models.Conversation
	touchedTitle  *string
	touched       bool
}

func newStubConvRepo() *stubConvRepo {
	return &stubConvRepo{conversations: make(map[string]*models.Conversation)}
}

func (r *stubConvRepo) Create(ctx context.Context, conv *models.Conversation) error {
	if _, exists := r.conversations[conv.ID]; exists {
		return &domain.ConflictError{Message: "exists", ResourceType: "conversation", ResourceID: conv.ID}
	}
	copied := *conv
	r.conversations[conv.ID] = &copied
	return nil
}

func (r *stubConvRepo) GetByID(ctx context.Context, id, userID string) (*models.Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (r *stubConvRepo) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (r *stubConvRepo) Touch(ctx context.Context, id string, title *string) error {
	r.touched = true
	r.touchedTitle = title
	if conv, ok := r.conversations[id]; ok {
		conv.LastMessageAt = time.Now()
		if title != nil && (conv.Title == nil || *conv.Title == "") {
			conv.Title = title
		}
	}
	return nil
}

type stubMsgRepo struct {
	messages []models.Message
	createErr error
}

func (r *stubMsgRepo) Create(ctx context.Context, msg *models.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *stubMsgRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubUserRepo struct {
	ensured []string
}

func (r *stubUserRepo) EnsureDemoUser(ctx context.Context) (string, error) {
	return models.DemoUserID, nil
}

func (r *stubUserRepo) Ensure(ctx context.Context, userID string) error {
	r.ensured = append(r.ensured, userID)
	return nil
}

type stubTxManager struct{}

func (m *stubTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

func newConversationService(convRepo *stubConvRepo, msgRepo *stubMsgRepo) *ConversationService {
	return NewConversationService(convRepo, msgRepo, &stubUserRepo{}, &stubTxManager{}, testLogger())
}

func TestFindOrCreate(t *testing.T) {
	convRepo := newStubConvRepo()
	svc := newConversationService(convRepo, &stubMsgRepo{})

	conv, created, err := svc.FindOrCreate(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !created {
		t.Error("expected created=true on first call")
	}
	if conv.ID != "c1" {
		t.Errorf("id = %q", conv.ID)
	}

	_, created, err = svc.FindOrCreate(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if created {
		t.Error("expected created=false on second call")
	}
}

func TestAppendMessageDerivesTitle(t *testing.T) {
	convRepo := newStubConvRepo()
	msgRepo := &stubMsgRepo{}
	svc := newConversationService(convRepo, msgRepo)

	if _, _, err := svc.FindOrCreate(context.Background(), "c1", "u1"); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	msg, err := svc.AppendMessage(context.Background(), "u1", "c1", &models.Message{
		Role: models.RoleUser,
		Text: "What are today's top gainers in tech?",
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if msg.ID == "" {
		t.Error("message id not assigned")
	}
	if convRepo.touchedTitle == nil || *convRepo.touchedTitle != "What are today's top gainers in tech?" {
		t.Errorf("title = %v", convRepo.touchedTitle)
	}
}

func TestAppendMessageSkipsNoiseTitle(t *testing.T) {
	convRepo := newStubConvRepo()
	svc := newConversationService(convRepo, &stubMsgRepo{})

	if _, _, err := svc.FindOrCreate(context.Background(), "c1", "u1"); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if _, err := svc.AppendMessage(context.Background(), "u1", "c1", &models.Message{
		Role: models.RoleUser,
		Text: "hi",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if convRepo.touchedTitle != nil {
		t.Errorf("noise text should not title the conversation, got %q", *convRepo.touchedTitle)
	}
	if !convRepo.touched {
		t.Error("last_message_at should still be bumped")
	}
}

func TestAppendMessageValidation(t *testing.T) {
	svc := newConversationService(newStubConvRepo(), &stubMsgRepo{})
	_, err := svc.AppendMessage(context.Background(), "u1", "c1", &models.Message{Role: "meta", Text: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	_, err = svc.AppendMessage(context.Background(), "u1", "c1", &models.Message{Role: models.RoleUser})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestAppendMessageWrongOwner(t *testing.T) {
	convRepo := newStubConvRepo()
	msgRepo := &stubMsgRepo{}
	svc := newConversationService(convRepo, msgRepo)
	if _, _, err := svc.FindOrCreate(context.Background(), "c1", "u1"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.AppendMessage(context.Background(), "intruder", "c1", &models.Message{
		Role: models.RoleUser,
		Text: "show me the watchlist",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if len(msgRepo.messages) != 0 {
		t.Error("message must not land in another user's conversation")
	}
}

func TestAppendMessageCreatesConversation(t *testing.T) {
	convRepo := newStubConvRepo()
	msgRepo := &stubMsgRepo{}
	svc := newConversationService(convRepo, msgRepo)

	msg, err := svc.AppendMessage(context.Background(), "u1", "call-9f2", &models.Message{
		Role: models.RoleUser,
		Text: "Add Tesla to my watchlist",
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if msg.ConversationID != "call-9f2" {
		t.Errorf("conversation id = %q", msg.ConversationID)
	}
	conv, err := svc.Get(context.Background(), "call-9f2", "u1")
	if err != nil {
		t.Fatalf("Get after implicit create: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Errorf("got %d messages, want 1", len(conv.Messages))
	}
	if conv.Title == nil || *conv.Title != "Add Tesla to my watchlist" {
		t.Errorf("title = %v", conv.Title)
	}
}

func TestImportTranscript(t *testing.T) {
	convRepo := newStubConvRepo()
	msgRepo := &stubMsgRepo{}
	svc := newConversationService(convRepo, msgRepo)

	at := time.Now().Add(-time.Hour)
	conv, err := svc.Import(context.Background(), "u1", nil, nil, []TranscriptEntry{
		{Role: models.RoleAssistant, Text: "Hello, how can I help?"},
		{Role: models.RoleUser, Text: "Give me a quote for apple", At: &at},
		{Role: "bogus", Text: "stray line"},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if conv.Title == nil || *conv.Title != "Give me a quote for apple" {
		t.Errorf("title = %v", conv.Title)
	}
	msgs, _ := msgRepo.ListByConversation(context.Background(), conv.ID)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if !msgs[1].CreatedAt.Equal(at) {
		t.Error("transcript timestamp not preserved")
	}
	if msgs[2].Role != models.RoleUser {
		t.Errorf("unknown role should default to user, got %q", msgs[2].Role)
	}
}

func TestGetWithMessages(t *testing.T) {
	convRepo := newStubConvRepo()
	msgRepo := &stubMsgRepo{}
	svc := newConversationService(convRepo, msgRepo)

	if _, _, err := svc.FindOrCreate(context.Background(), "c1", "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AppendMessage(context.Background(), "u1", "c1", &models.Message{
		Role: models.RoleUser, Text: "What moved today?",
	}); err != nil {
		t.Fatal(err)
	}

	conv, err := svc.Get(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Errorf("got %d messages, want 1", len(conv.Messages))
	}
}
