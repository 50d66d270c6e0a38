// Package store provides the SQLite + FTS5 archive for chatnote.
//
// One database file holds:
// - imported messages with their import run and full JSON record
// - an FTS5 index over message content and sender
// - saved notes and parsed events, keyed by note ordinal
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/chatnote/internal/aggregate"
	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/notes"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.chatnote/chatnote.db"

// ImportRun records one ImportMessages call.
type ImportRun struct {
	ID         string
	Source     string
	ImportedAt time.Time
	Total      int // messages offered
	Added      int // messages not already archived
}

// SearchResult is one matching message.
type SearchResult struct {
	Message chat.Message
	// Position is the message's index in timestamp order across the archive.
	Position int
	Score    float64
	Snippet  string
}

// StoreStats summarizes the archive.
type StoreStats struct {
	MessageCount int64
	SenderCount  int64
	ImportRuns   int64
	NoteCount    int64
	EventCount   int64
	FirstMS      int64
	LastMS       int64
	DBSizeBytes  int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store is the archive interface.
type Store interface {
	// Messages
	ImportMessages(ctx context.Context, source string, messages []chat.Message) (*ImportRun, error)
	AllMessages(ctx context.Context) ([]chat.Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]*SearchResult, error)
	ListImportRuns(ctx context.Context) ([]*ImportRun, error)

	// Notes and events, keyed by note ordinal
	SaveNotes(ctx context.Context, stored []notes.Stored) error
	ListNotes(ctx context.Context) ([]notes.Stored, error)
	SaveEvents(ctx context.Context, records []aggregate.EventRecord) error
	ListEvents(ctx context.Context) ([]aggregate.EventRecord, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite + FTS5.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (and migrates) the database.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats counts rows in every table.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM messages", &stats.MessageCount},
		{"SELECT COUNT(DISTINCT sender) FROM messages", &stats.SenderCount},
		{"SELECT COUNT(*) FROM import_runs", &stats.ImportRuns},
		{"SELECT COUNT(*) FROM notes", &stats.NoteCount},
		{"SELECT COUNT(*) FROM events", &stats.EventCount},
		{"SELECT COALESCE(MIN(timestamp_ms), 0) FROM messages", &stats.FirstMS},
		{"SELECT COALESCE(MAX(timestamp_ms), 0) FROM messages", &stats.LastMS},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// Get DB size (only works for file-based DBs)
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
