package models

import "time"

// ToolCallStatus tracks the lifecycle of one external tool-call delivery.
type ToolCallStatus string

const (
	ToolCallProcessing ToolCallStatus = "processing"
	ToolCallSucceeded  ToolCallStatus = "succeeded"
	ToolCallFailed     ToolCallStatus = "failed"
)

// ProcessedToolCall is the idempotency ledger entry for one toolCallId.
// The voice platform delivers at-least-once; replays must observe the
// recorded terminal response instead of re-executing the handler.
type ProcessedToolCall struct {
	ToolCallID     string         `json:"tool_call_id" db:"tool_call_id"`
	Status         ToolCallStatus `json:"status" db:"status"`
	ResultJSON     JSONMap        `json:"result_json,omitempty" db:"result_json"`
	ErrorJSON      JSONMap        `json:"error_json,omitempty" db:"error_json"`
	ConversationID *string        `json:"conversation_id,omitempty" db:"conversation_id"`
	UserID         *string        `json:"user_id,omitempty" db:"user_id"`
	ToolName       *string        `json:"tool_name,omitempty" db:"tool_name"`
	EventID        *string        `json:"event_id,omitempty" db:"event_id"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}
