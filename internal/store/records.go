package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hurttlocker/chatnote/internal/aggregate"
	"github.com/hurttlocker/chatnote/internal/notes"
)

// SaveNotes upserts notes by ordinal.
func (s *SQLiteStore) SaveNotes(ctx context.Context, stored []notes.Stored) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, n := range stored {
		ctxJSON, err := json.Marshal(n.Note.Context)
		if err != nil {
			return fmt.Errorf("encoding note %d: %w", n.Ordinal, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (ordinal, trigger_index, context, saved_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(ordinal) DO UPDATE SET
			   trigger_index = excluded.trigger_index,
			   context = excluded.context,
			   saved_at = excluded.saved_at`,
			n.Ordinal, n.Note.TriggerIndex, string(ctxJSON), now,
		); err != nil {
			return fmt.Errorf("saving note %d: %w", n.Ordinal, err)
		}
	}
	return tx.Commit()
}

// ListNotes returns every saved note in ordinal order.
func (s *SQLiteStore) ListNotes(ctx context.Context) ([]notes.Stored, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ordinal, trigger_index, context FROM notes ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var out []notes.Stored
	for rows.Next() {
		var n notes.Stored
		var ctxJSON string
		if err := rows.Scan(&n.Ordinal, &n.Note.TriggerIndex, &ctxJSON); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		if err := json.Unmarshal([]byte(ctxJSON), &n.Note.Context); err != nil {
			return nil, fmt.Errorf("decoding note %d: %w", n.Ordinal, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SaveEvents upserts event records by ordinal.
func (s *SQLiteStore) SaveEvents(ctx context.Context, records []aggregate.EventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (ordinal, title, category, location, time, notes, context, saved_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(ordinal) DO UPDATE SET
			   title = excluded.title,
			   category = excluded.category,
			   location = excluded.location,
			   time = excluded.time,
			   notes = excluded.notes,
			   context = excluded.context,
			   saved_at = excluded.saved_at`,
			r.Ordinal, r.Title, r.Category, r.Location, r.Time, r.Notes, r.Context, now,
		); err != nil {
			return fmt.Errorf("saving event %d: %w", r.Ordinal, err)
		}
	}
	return tx.Commit()
}

// ListEvents returns every saved event in ordinal order.
func (s *SQLiteStore) ListEvents(ctx context.Context) ([]aggregate.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal, title, category, location, time, notes, context FROM events ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []aggregate.EventRecord
	for rows.Next() {
		var r aggregate.EventRecord
		if err := rows.Scan(&r.Ordinal, &r.Title, &r.Category, &r.Location, &r.Time, &r.Notes, &r.Context); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
