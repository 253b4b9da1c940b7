package handler

import (
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/httputil"
	"marketbrief/internal/service"
)

// ConversationHandler serves the conversation REST endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
	logger        *slog.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(conversations *service.ConversationService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, logger: logger}
}

// List handles GET /conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	conversations, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

// CreateConversationRequest is the POST /conversations body.
type CreateConversationRequest struct {
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
}

// Validate implements request validation.
func (req CreateConversationRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.Length(0, 200)),
		validation.Field(&req.Summary, validation.Length(0, 2000)),
	)
}

// Create handles POST /conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Create(r.Context(), userID, req.Title, req.Summary)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{"conversation": conv})
}

// Get handles GET /conversations/{id}, messages included.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "conversation id is required")
		return
	}
	conv, err := h.conversations.Get(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"conversation": conv})
}

// AppendMessageRequest is the POST /conversations/{id}/messages body.
type AppendMessageRequest struct {
	Role       models.Role    `json:"role"`
	Text       string         `json:"text"`
	ToolName   *string        `json:"toolName"`
	ToolCallID *string        `json:"toolCallId"`
	ToolArgs   models.JSONMap `json:"toolArgsJson"`
	ToolResult models.JSONMap `json:"toolResultJson"`
}

// Validate implements request validation.
func (req AppendMessageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Role, validation.Required,
			validation.In(models.RoleUser, models.RoleAssistant, models.RoleTool)),
		validation.Field(&req.Text, validation.Required, validation.Length(1, 20000)),
	)
}

// AppendMessage handles POST /conversations/{id}/messages.
func (h *ConversationHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	var req AppendMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.conversations.AppendMessage(r.Context(), userID, id, &models.Message{
		Role:       req.Role,
		Text:       req.Text,
		ToolName:   req.ToolName,
		ToolCallID: req.ToolCallID,
		ToolArgs:   req.ToolArgs,
		ToolResult: req.ToolResult,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{"message": msg})
}

// ImportRequest is the POST /conversations/import body: a complete
// transcript persisted as one conversation.
type ImportRequest struct {
	Title      *string                 `json:"title"`
	Summary    *string                 `json:"summary"`
	Transcript []ImportTranscriptEntry `json:"transcript"`
}

// ImportTranscriptEntry is one transcript line.
type ImportTranscriptEntry struct {
	Role models.Role `json:"role"`
	Text string      `json:"text"`
	At   *time.Time  `json:"at"`
}

// Validate implements request validation.
func (req ImportRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.Length(0, 200)),
		validation.Field(&req.Transcript, validation.Length(0, 1000)),
	)
}

// Import handles POST /conversations/import.
func (h *ConversationHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req ImportRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	transcript := make([]service.TranscriptEntry, 0, len(req.Transcript))
	for _, entry := range req.Transcript {
		transcript = append(transcript, service.TranscriptEntry{
			Role: entry.Role,
			Text: entry.Text,
			At:   entry.At,
		})
	}

	conv, err := h.conversations.Import(r.Context(), userID, req.Title, req.Summary, transcript)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{"conversationId": conv.ID})
}
