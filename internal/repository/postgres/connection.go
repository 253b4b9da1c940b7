package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"marketbrief/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Users                string
	Conversations        string
	Messages             string
	Profiles             string
	WatchlistItems       string
	PendingConfirmations string
	ProcessedToolCalls   string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Users:                prefix + "users",
		Conversations:        prefix + "conversations",
		Messages:             prefix + "messages",
		Profiles:             prefix + "user_profiles",
		WatchlistItems:       prefix + "watchlist_items",
		PendingConfirmations: prefix + "pending_confirmations",
		ProcessedToolCalls:   prefix + "processed_tool_calls",
	}
}

// CreateConnectionPool creates a new pgx connection pool.
//
// When the connection goes through a transaction pooler (port 6543) pgx's
// default prepared-statement caching breaks with "prepared statement already
// exists" errors. QueryExecModeCacheDescribe keeps the extended protocol
// (needed for JSONB encoding of map[string]interface{}) while caching only
// statement descriptions, which poolers tolerate. An explicit
// default_query_exec_mode in the connection string takes precedence.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for transaction pooler compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the appropriate query executor for the context.
// If a transaction is present in the context, it returns the transaction.
// Otherwise, it returns the provided pool.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
