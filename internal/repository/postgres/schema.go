package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the prefixed tables when they do not exist. Intended
// for dev/test bootstrap; production schemas are managed out of band but the
// statements are idempotent either way.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.Users),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES %s(id),
				title TEXT,
				summary TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				last_message_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.Conversations, tables.Users),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				text TEXT NOT NULL,
				tool_name TEXT,
				tool_call_id TEXT,
				tool_args_json JSONB,
				tool_result_json JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.Messages, tables.Conversations),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_conversation_created_idx
				ON %s (conversation_id, created_at)`, tables.Messages, tables.Messages),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT PRIMARY KEY REFERENCES %s(id),
				risk_tolerance TEXT NOT NULL,
				horizon TEXT NOT NULL,
				brief_style TEXT NOT NULL,
				experience TEXT NOT NULL,
				sectors TEXT,
				constraints TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.Profiles, tables.Users),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT NOT NULL REFERENCES %s(id),
				ticker TEXT NOT NULL,
				reason TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (user_id, ticker)
			)`, tables.WatchlistItems, tables.Users),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				conversation_id TEXT NOT NULL,
				tool_name TEXT NOT NULL,
				ticker TEXT NOT NULL,
				args JSONB NOT NULL DEFAULT '{}'::jsonb,
				user_id TEXT NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (conversation_id, tool_name, ticker)
			)`, tables.PendingConfirmations),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				tool_call_id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				result_json JSONB,
				error_json JSONB,
				conversation_id TEXT,
				user_id TEXT,
				tool_name TEXT,
				event_id TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.ProcessedToolCalls),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
