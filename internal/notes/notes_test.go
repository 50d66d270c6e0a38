package notes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMessages(contents ...string) []chat.Message {
	msgs := make([]chat.Message, len(contents))
	for i, c := range contents {
		msgs[i] = chat.Message{
			SenderName:  fmt.Sprintf("user%d", i%2),
			TimestampMS: int64(1000 * (i + 1)),
			Content:     chat.StringPtr(c),
		}
	}
	return msgs
}

func TestScan_ClampsAtUpperBound(t *testing.T) {
	msgs := makeMessages("a", "b", "c", "d", "nhớ ghi sổ nhé")

	got := Scan(msgs, Trigger{Phrase: "ghi sổ", Radius: 2})
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].TriggerIndex)
	require.Len(t, got[0].Context, 3)
	assert.Equal(t, []string{"c", "d", "nhớ ghi sổ nhé"},
		[]string{got[0].Context[0].Text(), got[0].Context[1].Text(), got[0].Context[2].Text()})
}

func TestScan_CaseInsensitive(t *testing.T) {
	msgs := makeMessages("GHI SỔ quán này", "x", "Ghi Sổ luôn")
	got := Scan(msgs, Trigger{Phrase: "ghi sổ", Radius: 0})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].TriggerIndex)
	assert.Equal(t, 2, got[1].TriggerIndex)
	assert.Len(t, got[0].Context, 1)
}

func TestScan_SkipsMissingContent(t *testing.T) {
	msgs := []chat.Message{
		{SenderName: "a", TimestampMS: 1},
		{SenderName: "b", TimestampMS: 2, Content: chat.StringPtr("ghi sổ")},
	}
	got := Scan(msgs, DefaultTrigger())
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].TriggerIndex)
	assert.Len(t, got[0].Context, 2)
}

func TestScan_OverlappingWindowsAreIndependent(t *testing.T) {
	msgs := makeMessages("x", "ghi sổ 1", "y", "ghi sổ 2", "z")
	got := Scan(msgs, Trigger{Phrase: "ghi sổ", Radius: 2})
	require.Len(t, got, 2)
	assert.Len(t, got[0].Context, 4) // [0,3]
	assert.Len(t, got[1].Context, 4) // [1,4]
	assert.Equal(t, "ghi sổ 1", got[1].Context[0].Text())
}

func TestScan_EmptyPhraseMatchesNothing(t *testing.T) {
	assert.Empty(t, Scan(makeMessages("a", "b"), Trigger{Phrase: "  ", Radius: 3}))
}

func TestScan_WindowLengthProperty(t *testing.T) {
	for _, length := range []int{1, 2, 5, 13, 30} {
		for _, radius := range []int{0, 1, 3, 10} {
			contents := make([]string, length)
			for i := range contents {
				contents[i] = "ghi sổ"
			}
			msgs := makeMessages(contents...)
			got := Scan(msgs, Trigger{Phrase: "ghi sổ", Radius: radius})
			require.Len(t, got, length)

			for i, n := range got {
				want := min(i+radius, length-1) - max(i-radius, 0) + 1
				assert.Len(t, n.Context, want, "L=%d r=%d i=%d", length, radius, i)

				trig, ok := n.Trigger(radius)
				require.True(t, ok)
				assert.Equal(t, msgs[i].TimestampMS, trig.TimestampMS)
			}
		}
	}
}

func TestNoteTrigger_NegativeRadius(t *testing.T) {
	msgs := makeMessages("a", "b", "ghi sổ", "c")
	got := Scan(msgs, Trigger{Phrase: "ghi sổ", Radius: -3})
	require.Len(t, got, 1)
	require.Len(t, got[0].Context, 1)

	trig, ok := got[0].Trigger(-3)
	require.True(t, ok)
	assert.Equal(t, "ghi sổ", trig.Text())

	_, ok = Note{TriggerIndex: 5}.Trigger(2)
	assert.False(t, ok)
}

func TestStore_WriteAndReadAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	s := Store{Dir: dir}

	msgs := makeMessages("a", "ghi sổ b", "c")
	var saved []int
	n, err := s.WriteAll(Scan(msgs, Trigger{Phrase: "ghi sổ", Radius: 1}), func(k int, path string) {
		saved = append(saved, k)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1}, saved)
	assert.FileExists(t, filepath.Join(dir, "note_1.json"))

	got, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Ordinal)
	assert.Equal(t, 1, got[0].Note.TriggerIndex)
	assert.Len(t, got[0].Note.Context, 3)
}

func TestStore_FileShape(t *testing.T) {
	dir := t.TempDir()
	s := Store{Dir: dir}
	_, err := s.WriteAll([]Note{{TriggerIndex: 4, Context: makeMessages("ghi sổ")}}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "note_1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"trigger_message_index": 4,
		"context_messages": [{"sender_name":"user0","timestamp_ms":1000,"content":"ghi sổ"}]
	}`, string(data))
}

func TestStore_ReadAllNumericOrder(t *testing.T) {
	dir := t.TempDir()
	notes := make([]Note, 11)
	for i := range notes {
		notes[i] = Note{TriggerIndex: i * 3}
	}
	_, err := Store{Dir: dir}.WriteAll(notes, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note_draft.json"), []byte("{}"), 0644))

	got, err := Store{Dir: dir}.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 11)
	for i, st := range got {
		assert.Equal(t, i+1, st.Ordinal)
		assert.Equal(t, i*3, st.Note.TriggerIndex)
	}
}

func TestStore_WriteFailureKeepsEarlierRecords(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory entries used as blockers behave differently on windows")
	}
	dir := t.TempDir()
	// A directory named note_2.json makes the second write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "note_2.json"), 0755))

	n, err := Store{Dir: dir}.WriteAll([]Note{{TriggerIndex: 1}, {TriggerIndex: 2}, {TriggerIndex: 3}}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, filepath.Join(dir, "note_2.json"), we.Path)
	assert.FileExists(t, filepath.Join(dir, "note_1.json"))
	assert.NoFileExists(t, filepath.Join(dir, "note_3.json"))
}

func TestStore_ReadAllBadRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note_1.json"), []byte("{"), 0644))
	_, err := Store{Dir: dir}.ReadAll()
	var le *chat.LoadError
	assert.True(t, errors.As(err, &le))
}

func TestStore_StaleAndPrune(t *testing.T) {
	s := Store{Dir: filepath.Join(t.TempDir(), "notes")}

	stale, err := s.Stale(0)
	require.NoError(t, err)
	assert.Empty(t, stale)

	five := make([]Note, 5)
	for i := range five {
		five[i] = Note{TriggerIndex: i}
	}
	_, err = s.WriteAll(five, nil)
	require.NoError(t, err)

	// A later scan finds only two triggers.
	_, err = s.WriteAll(five[:2], nil)
	require.NoError(t, err)

	stale, err = s.Stale(2)
	require.NoError(t, err)
	require.Len(t, stale, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{stale[0].Ordinal, stale[1].Ordinal, stale[2].Ordinal})

	removed, err := s.Prune(2)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	stored, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 2, stored[1].Ordinal)
}

func TestOrdinal(t *testing.T) {
	k, ok := Ordinal("note_12.json", FilePrefix, FileSuffix)
	assert.True(t, ok)
	assert.Equal(t, 12, k)

	for _, name := range []string{"note_.json", "note_0.json", "note_x.json", "event_1.md", "note_1.json.bak"} {
		_, ok := Ordinal(name, FilePrefix, FileSuffix)
		assert.False(t, ok, name)
	}
}
