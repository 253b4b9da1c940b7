package models

import (
	"strings"
	"time"
)

// JSONMap is a type alias for JSONB columns
type JSONMap map[string]interface{}

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ValidRole reports whether r is one of the known message roles.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant || r == RoleTool
}

// Conversation groups the messages of one voice session.
type Conversation struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"-" db:"user_id"`
	Title         *string   `json:"title" db:"title"`
	Summary       *string   `json:"summary" db:"summary"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`

	// Messages is populated only by the get-with-messages read path.
	Messages []Message `json:"messages,omitempty" db:"-"`
}

// Message is one turn of a conversation. Tool turns carry the invocation
// metadata so transcripts can be replayed for debugging.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           Role      `json:"role" db:"role"`
	Text           string    `json:"text" db:"text"`
	ToolName       *string   `json:"tool_name,omitempty" db:"tool_name"`
	ToolCallID     *string   `json:"tool_call_id,omitempty" db:"tool_call_id"`
	ToolArgs       JSONMap   `json:"tool_args,omitempty" db:"tool_args_json"`
	ToolResult     JSONMap   `json:"tool_result,omitempty" db:"tool_result_json"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// IsNoiseText reports whether text is too generic to title a conversation
// with (greetings, UI placeholders, very short fragments).
func IsNoiseText(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "voice session") || strings.HasPrefix(s, "tap to load") || strings.HasPrefix(s, "conversation ") {
		return true
	}
	if len(s) < 4 {
		return true
	}
	switch s {
	case "hi", "hey", "hello", "yo", "test":
		return true
	}
	return false
}

// BuildTitle derives a conversation title from the first meaningful user
// message. Returns nil when the text is noise.
func BuildTitle(text string) *string {
	if IsNoiseText(text) {
		return nil
	}
	sanitized := strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	if sanitized == "" {
		return nil
	}
	const max = 80
	if len(sanitized) > max {
		sanitized = sanitized[:max-1] + "…"
	}
	return &sanitized
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
