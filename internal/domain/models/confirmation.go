package models

import "time"

// ConfirmationTTL bounds how long a pending confirmation stays actionable.
// After this the user's "yes" is assumed to refer to something else.
const ConfirmationTTL = 5 * time.Minute

// PendingConfirmation records a tool invocation awaiting an explicit yes/no
// from the user, keyed by (conversation, tool, ticker). At most one live
// record exists per key; expired rows are deleted lazily on read.
type PendingConfirmation struct {
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	ToolName       string    `json:"tool_name" db:"tool_name"`
	Ticker         string    `json:"ticker" db:"ticker"`
	Args           JSONMap   `json:"args" db:"args"`
	UserID         string    `json:"user_id" db:"user_id"`
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}
