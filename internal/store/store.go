package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup matches no document.
var ErrNotFound = errors.New("store: not found")

// Store handles all database operations
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New creates a new Store with SQLite backend
func New(dbPath string, log *zap.Logger) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		in_reply_to TEXT,
		references_json TEXT,
		media_json TEXT,
		likes INTEGER,
		reshares INTEGER,
		replies INTEGER,
		engagement_score REAL,
		context_built BOOLEAN NOT NULL DEFAULT 0,
		context_built_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS authors (
		id TEXT PRIMARY KEY,
		name TEXT,
		handle TEXT NOT NULL,
		followers INTEGER,
		post_count INTEGER,
		prompt TEXT,
		last_fetched DATETIME
	);

	CREATE TABLE IF NOT EXISTS responses (
		post_id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		context TEXT NOT NULL,
		processed_by TEXT,
		processed_at DATETIME NOT NULL,
		response TEXT,
		response_generated_at DATETIME,
		posted BOOLEAN,
		response_id TEXT
	);

	CREATE TABLE IF NOT EXISTS image_descriptions (
		url TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_score ON posts(engagement_score);
	CREATE INDEX IF NOT EXISTS idx_posts_context_built ON posts(context_built);
	CREATE INDEX IF NOT EXISTS idx_posts_in_reply_to ON posts(in_reply_to);
	CREATE INDEX IF NOT EXISTS idx_responses_author ON responses(author_id, processed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
