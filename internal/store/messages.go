package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// HashMessage identifies a message by sender, timestamp and content, so
// re-importing an overlapping export adds nothing twice. A missing content
// field hashes differently from an empty one.
func HashMessage(m chat.Message) string {
	h := sha256.New()
	h.Write([]byte(m.SenderName))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.TimestampMS, 10)))
	h.Write([]byte{0})
	if m.Content != nil {
		h.Write([]byte{1})
		h.Write([]byte(*m.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ImportMessages archives messages under a new import run. Messages already
// in the archive are skipped.
func (s *SQLiteStore) ImportMessages(ctx context.Context, source string, messages []chat.Message) (*ImportRun, error) {
	run := &ImportRun{
		ID:         uuid.NewString(),
		Source:     source,
		ImportedAt: time.Now().UTC(),
		Total:      len(messages),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, imported_at, total, added) VALUES (?, ?, ?, ?, 0)`,
		run.ID, run.Source, run.ImportedAt, run.Total,
	); err != nil {
		return nil, fmt.Errorf("recording import run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO messages (run_id, sender, timestamp_ms, content, raw, message_hash)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encoding message %d: %w", i, err)
		}
		var content sql.NullString
		if m.Content != nil {
			content = sql.NullString{String: *m.Content, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, run.ID, m.SenderName, m.TimestampMS, content, string(raw), HashMessage(m))
		if err != nil {
			return nil, fmt.Errorf("inserting message %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			run.Added++
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE import_runs SET added = ? WHERE id = ?`, run.Added, run.ID); err != nil {
		return nil, fmt.Errorf("updating import run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return run, nil
}

// ListImportRuns returns every import run, newest first.
func (s *SQLiteStore) ListImportRuns(ctx context.Context) ([]*ImportRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, imported_at, total, added FROM import_runs ORDER BY imported_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing import runs: %w", err)
	}
	defer rows.Close()

	var runs []*ImportRun
	for rows.Next() {
		r := &ImportRun{}
		if err := rows.Scan(&r.ID, &r.Source, &r.ImportedAt, &r.Total, &r.Added); err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AllMessages returns the archive ordered by timestamp, ties in import order.
func (s *SQLiteStore) AllMessages(ctx context.Context) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw FROM messages ORDER BY timestamp_ms, id`)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		var m chat.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// positionExpr is the message's index in AllMessages order.
const positionExpr = `(SELECT COUNT(*) FROM messages p
	WHERE p.timestamp_ms < m.timestamp_ms OR (p.timestamp_ms = m.timestamp_ms AND p.id < m.id))`

// SearchMessages runs a full-text search over content and sender. Each
// whitespace-separated term must match. When FTS finds nothing (or the query
// cannot be tokenized) a substring match on content is tried instead.
func (s *SQLiteStore) SearchMessages(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var results []*SearchResult
	if match := ftsQuery(query); match != "" {
		rows, err := s.db.QueryContext(ctx,
			`SELECT m.raw, `+positionExpr+`, bm25(messages_fts),
			        snippet(messages_fts, 0, '**', '**', '...', 16)
			 FROM messages_fts
			 JOIN messages m ON messages_fts.rowid = m.id
			 WHERE messages_fts MATCH ?
			 ORDER BY bm25(messages_fts), m.timestamp_ms
			 LIMIT ?`,
			match, limit,
		)
		// A query FTS5 rejects falls through to the substring search.
		if err == nil {
			results, err = scanResults(rows, true)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(results) == 0 {
		return s.searchLikeFallback(ctx, query, limit)
	}
	return results, nil
}

func (s *SQLiteStore) searchLikeFallback(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.raw, `+positionExpr+`
		 FROM messages m
		 WHERE m.content LIKE ? ESCAPE '\'
		 ORDER BY m.timestamp_ms, m.id
		 LIMIT ?`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("LIKE search: %w", err)
	}
	results, err := scanResults(rows, false)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		r.Score = -0.5 // LIKE matches get a neutral score
		r.Snippet = extractSnippet(r.Message.Text(), query)
	}
	return results, nil
}

func scanResults(rows *sql.Rows, ranked bool) ([]*SearchResult, error) {
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		r := &SearchResult{}
		var raw string
		dest := []any{&raw, &r.Position}
		if ranked {
			dest = append(dest, &r.Score, &r.Snippet)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &r.Message); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes every term so user input never hits FTS5 query syntax.
// Terms without a letter or digit are dropped.
func ftsQuery(query string) string {
	var terms []string
	for _, f := range strings.Fields(query) {
		f = strings.ReplaceAll(f, `"`, "")
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// extractSnippet extracts a relevant snippet around the query match in content.
func extractSnippet(content, query string) string {
	contentRunes := []rune(content)
	if len(contentRunes) == 0 {
		return ""
	}

	lowerContent := strings.ToLower(content)
	lowerQuery := strings.ToLower(query)
	idx := strings.Index(lowerContent, lowerQuery)
	if idx < 0 || len(lowerContent) != len(content) {
		if len(contentRunes) > 120 {
			return string(contentRunes[:120]) + "..."
		}
		return content
	}

	matchStartRune := len([]rune(content[:idx]))
	matchLenRunes := len([]rune(query))
	if matchLenRunes <= 0 {
		matchLenRunes = 1
	}

	start := matchStartRune - 40
	if start < 0 {
		start = 0
	}
	end := matchStartRune + matchLenRunes + 40
	if end > len(contentRunes) {
		end = len(contentRunes)
	}

	snippet := string(contentRunes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(contentRunes) {
		snippet = snippet + "..."
	}
	return snippet
}
