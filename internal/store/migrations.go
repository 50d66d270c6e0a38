package store

import (
	"fmt"
	"strconv"
)

// schemaVersion is bumped whenever migrate gains a step.
const schemaVersion = 1

// migrate creates all tables if they don't exist and records the schema version.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS import_runs (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			imported_at DATETIME NOT NULL,
			total       INTEGER NOT NULL DEFAULT 0,
			added       INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES import_runs(id),
			sender       TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			content      TEXT,
			raw          TEXT NOT NULL,
			message_hash TEXT NOT NULL UNIQUE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(timestamp_ms, id)`,

		// FTS5 over content and sender; diacritics folded so "ghi so" finds "ghi sổ".
		`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			content,
			sender,
			content=messages,
			content_rowid=id,
			tokenize='unicode61 remove_diacritics 2'
		)`,

		`CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, content, sender)
			VALUES (new.id, COALESCE(new.content, ''), new.sender);
		END`,

		`CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content, sender)
			VALUES ('delete', old.id, COALESCE(old.content, ''), old.sender);
		END`,

		`CREATE TABLE IF NOT EXISTS notes (
			ordinal       INTEGER PRIMARY KEY,
			trigger_index INTEGER NOT NULL,
			context       TEXT NOT NULL,
			saved_at      DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			ordinal  INTEGER PRIMARY KEY,
			title    TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			time     TEXT NOT NULL DEFAULT '',
			notes    TEXT NOT NULL DEFAULT '',
			context  TEXT NOT NULL DEFAULT '',
			saved_at DATETIME NOT NULL
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w\nStatement: %s", err, stmt)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(schemaVersion),
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return tx.Commit()
}
