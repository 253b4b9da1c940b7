// Drops every application table for the current environment. Development
// convenience only; the server recreates the schema on startup.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Read environment to determine table prefix
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev" // Default to dev
	}

	var prefix string
	if env == "prod" {
		prefix = ""
	} else {
		prefix = env + "_"
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	// Drop all tables with environment-specific prefix, children first
	dropSQL := fmt.Sprintf(`
		DROP TABLE IF EXISTS %sprocessed_tool_calls CASCADE;
		DROP TABLE IF EXISTS %spending_confirmations CASCADE;
		DROP TABLE IF EXISTS %swatchlist_items CASCADE;
		DROP TABLE IF EXISTS %suser_profiles CASCADE;
		DROP TABLE IF EXISTS %smessages CASCADE;
		DROP TABLE IF EXISTS %sconversations CASCADE;
		DROP TABLE IF EXISTS %susers CASCADE;
	`, prefix, prefix, prefix, prefix, prefix, prefix, prefix)

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", prefix)
}
