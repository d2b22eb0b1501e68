package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// schemaStatements are applied one by one on startup so a fresh database is
// usable immediately. Snapshots live as a column on arenas: each save
// replaces the previous one, the message stream carries the event history.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS arenas (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		config     JSONB NOT NULL,
		snapshot   JSONB,
		state      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS arena_messages (
		id                 TEXT PRIMARY KEY,
		arena_id           TEXT NOT NULL,
		agent_id           TEXT NOT NULL DEFAULT '',
		agent_role         TEXT NOT NULL DEFAULT '',
		type               TEXT NOT NULL,
		content            TEXT NOT NULL,
		target_strategy_id TEXT NOT NULL DEFAULT '',
		round_id           TEXT NOT NULL DEFAULT '',
		metadata           JSONB,
		timestamp          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_arena_messages_arena_time
		ON arena_messages (arena_id, timestamp)`,
}

// InitDB initializes the database connection pool using the DATABASE_URL
// environment variable and bootstraps the schema.
func InitDB(ctx context.Context) error {
	var err error
	once.Do(func() {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return
		}

		for _, stmt := range schemaStatements {
			if _, err = pool.Exec(ctx, stmt); err != nil {
				err = fmt.Errorf("failed to bootstrap schema: %w", err)
				pool.Close()
				pool = nil
				return
			}
		}
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
