// Package storage handles data persistence: the SQLite page cache, LLM call
// tracking and thumbnail files on disk.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Blank import: registers the SQLite driver.
)

// The schema is a constant compiled into the binary, so no migration files
// need to exist at runtime. Every statement is idempotent.
//
// photo_cache.created_at is unix milliseconds: freshness checks are integer
// comparisons and don't depend on SQLite's date functions.
const schema = `
CREATE TABLE IF NOT EXISTS photo_cache (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    provider    TEXT NOT NULL,
    query       TEXT NOT NULL,
    page        INTEGER NOT NULL,
    photos      TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    UNIQUE (provider, query, page)
);

CREATE TABLE IF NOT EXISTS llm_calls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    subject     TEXT NOT NULL,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    success     BOOLEAN NOT NULL DEFAULT 0,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_photo_cache_lookup ON photo_cache(query, page, created_at);
CREATE INDEX IF NOT EXISTS idx_photo_cache_created ON photo_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_llm_calls_provider ON llm_calls(provider);
`

// NewDatabase creates a new SQLite connection and runs migrations.
// sqlx wraps database/sql with convenience methods like StructScan and NamedExec.
//
// The constructor creates the resource AND validates it (Ping).
// Any failure is returned to the caller.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// The DSN configures SQLite pragmas:
	// - WAL mode: readers don't block the writer (the sweeper runs alongside requests)
	// - foreign_keys: enforce referential integrity
	// - busy_timeout: wait up to 5s instead of failing on lock contention
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Ping actually opens the connection (Open is lazy in database/sql)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection. This also makes
	// PutBatch transactions and sweeps serialize with reads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
