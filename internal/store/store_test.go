package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/chatnote/internal/aggregate"
	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/notes"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func msg(sender string, ts int64, content string) chat.Message {
	return chat.Message{SenderName: sender, TimestampMS: ts, Content: chat.StringPtr(content)}
}

func TestNewStoreCreatesTables(t *testing.T) {
	ss := newTestStore(t).(*SQLiteStore)
	for _, table := range []string{"meta", "import_runs", "messages", "messages_fts", "notes", "events"} {
		var name string
		err := ss.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestNewStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "chatnote.db")
	s, err := NewStore(StoreConfig{DBPath: path})
	require.NoError(t, err)
	_, err = s.ImportMessages(context.Background(), "a", []chat.Message{msg("An", 1, "x")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewStore(StoreConfig{DBPath: path})
	require.NoError(t, err)
	defer s.Close()
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MessageCount)
	assert.Greater(t, stats.DBSizeBytes, int64(0))
}

func TestImportMessagesDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []chat.Message{msg("An", 1000, "xin chào"), msg("Bình", 2000, "ghi sổ"), {SenderName: "An", TimestampMS: 3000}}
	run, err := s.ImportMessages(ctx, "export-1", first)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 3, run.Added)

	second := []chat.Message{msg("Bình", 2000, "ghi sổ"), msg("An", 3000, ""), msg("Chi", 4000, "mới")}
	run2, err := s.ImportMessages(ctx, "export-2", second)
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, run2.ID)
	assert.Equal(t, 2, run2.Added, "empty content differs from missing content")

	runs, err := s.ListImportRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run2.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Added)
	assert.Equal(t, "export-1", runs[1].Source)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.MessageCount)
	assert.Equal(t, int64(3), stats.SenderCount)
	assert.Equal(t, int64(2), stats.ImportRuns)
	assert.Equal(t, int64(1000), stats.FirstMS)
	assert.Equal(t, int64(4000), stats.LastMS)
}

func TestAllMessagesPreservesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withExtra := msg("An", 500, "ảnh")
	withExtra.Extra = map[string]any{"photos": []any{map[string]any{"uri": "p.jpg"}}}
	_, err := s.ImportMessages(ctx, "x", []chat.Message{msg("Bình", 900, "b"), withExtra, msg("Chi", 900, "c")})
	require.NoError(t, err)

	all, err := s.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "An", all[0].SenderName)
	assert.Equal(t, []any{map[string]any{"uri": "p.jpg"}}, all[0].Extra["photos"])
	assert.Equal(t, "Bình", all[1].SenderName, "ties keep import order")
	assert.Equal(t, "Chi", all[2].SenderName)
}

func TestSearchMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.ImportMessages(ctx, "x", []chat.Message{
		msg("An", 1, "tối nay đi ăn phở nhé"),
		msg("Bình", 2, "quán phở Thìn, ghi sổ"),
		msg("An", 3, "ok"),
	})
	require.NoError(t, err)

	results, err := s.SearchMessages(ctx, "ghi sổ", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Bình", results[0].Message.SenderName)
	assert.Equal(t, 1, results[0].Position)
	assert.Contains(t, results[0].Snippet, "**ghi**")

	results, err = s.SearchMessages(ctx, "pho", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "diacritics are folded")

	results, err = s.SearchMessages(ctx, "phở", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.SearchMessages(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMessagesQuotesSyntax(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.ImportMessages(ctx, "x", []chat.Message{msg("An", 1, `phở "ngon" AND rẻ`)})
	require.NoError(t, err)

	results, err := s.SearchMessages(ctx, `"ngon AND (`, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchMessagesLikeFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.ImportMessages(ctx, "x", []chat.Message{msg("An", 1, "giá 50% thôi"), msg("An", 2, "giá 50 nghìn")})
	require.NoError(t, err)

	results, err := s.SearchMessages(ctx, "0%", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "giá 50% thôi", results[0].Message.Text())
	assert.Equal(t, -0.5, results[0].Score)
}

func TestNotesAndEventsByOrdinal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveNotes(ctx, []notes.Stored{
		{Ordinal: 10, Note: notes.Note{TriggerIndex: 40, Context: []chat.Message{msg("An", 1, "ghi sổ")}}},
		{Ordinal: 2, Note: notes.Note{TriggerIndex: 7, Context: []chat.Message{}}},
	}))
	require.NoError(t, s.SaveNotes(ctx, []notes.Stored{{Ordinal: 2, Note: notes.Note{TriggerIndex: 8, Context: []chat.Message{}}}}))

	got, err := s.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Ordinal)
	assert.Equal(t, 8, got[0].Note.TriggerIndex)
	assert.Equal(t, 10, got[1].Ordinal)
	assert.Equal(t, "ghi sổ", got[1].Note.Context[0].Text())

	require.NoError(t, s.SaveEvents(ctx, []aggregate.EventRecord{
		{Ordinal: 3, Title: "Phở Thìn", Category: "Nhà hàng"},
		{Ordinal: 1, Title: "Cộng"},
	}))
	require.NoError(t, s.SaveEvents(ctx, []aggregate.EventRecord{{Ordinal: 3, Title: "Phở Thìn Lò Đúc"}}))

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, aggregate.EventRecord{Ordinal: 1, Title: "Cộng"}, events[0])
	assert.Equal(t, aggregate.EventRecord{Ordinal: 3, Title: "Phở Thìn Lò Đúc"}, events[1])

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.NoteCount)
	assert.Equal(t, int64(2), stats.EventCount)
}

func TestHashMessage(t *testing.T) {
	a := msg("An", 1, "x")
	b := msg("An", 1, "x")
	b.Extra = map[string]any{"reactions": []any{}}
	assert.Equal(t, HashMessage(a), HashMessage(b), "extra fields do not change identity")
	assert.NotEqual(t, HashMessage(a), HashMessage(msg("An", 2, "x")))
	assert.NotEqual(t, HashMessage(msg("An", 1, "")), HashMessage(chat.Message{SenderName: "An", TimestampMS: 1}))
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"ghi" "sổ"`, ftsQuery("ghi  sổ"))
	assert.Equal(t, `"ngon" "AND"`, ftsQuery(`"ngon AND ( -`))
	assert.Equal(t, "", ftsQuery("?? !"))
}

func TestExtractSnippet(t *testing.T) {
	assert.Equal(t, "", extractSnippet("", "x"))
	assert.Equal(t, "short text", extractSnippet("short text", "zzz"))
	long := "đầu aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa needle bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	snip := extractSnippet(long, "needle")
	assert.Contains(t, snip, "needle")
	assert.True(t, len([]rune(snip)) < len([]rune(long)))
}
