package models

import "time"

// DemoUserID is the fixed id of the shared demo user materialized when the
// webhook runs with demo fallback enabled (non-production only).
const DemoUserID = "demo-user"

// User is a minimal account record. Identity lives in the external auth
// provider; this row anchors foreign keys for conversations, watchlists
// and profiles.
type User struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
