package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// 14:05:09 5/3/2024 UTC
const ts = 1709647509000

func sample() []chat.Message {
	return []chat.Message{
		{SenderName: "An", TimestampMS: ts, Content: chat.StringPtr("đi ăn phở\nnhé")},
		{SenderName: "BÃ¬nh", TimestampMS: ts + 1000, Content: chat.StringPtr("ghi sá»\u0095")},
		{SenderName: "An", TimestampMS: ts + 2000, Extra: map[string]any{"photos": []any{map[string]any{"uri": "a.jpg"}}}},
	}
}

func export(t *testing.T, format string, msgs []chat.Message) []byte {
	t.Helper()
	e, err := ForFormat(format, Options{Location: time.UTC})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, e.Export(&buf, msgs))
	return buf.Bytes()
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"markdown", "DOCX", " pdf ", "Json"} {
		e, err := ForFormat(name, Options{})
		require.NoError(t, err, name)
		assert.Equal(t, strings.ToLower(strings.TrimSpace(name)), e.Format())
	}

	_, err := ForFormat("html", Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, []string{"docx", "json", "markdown", "pdf"}, Formats())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "messages.markdown", FileName("messages", Markdown{}))
	assert.Equal(t, "out/chat.pdf", FileName("out/chat", PDF{}))
}

func TestMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "# Instagram Chat Export\n\n", string(export(t, "markdown", nil)))
}

func TestMarkdown(t *testing.T) {
	want := "# Instagram Chat Export\n\n" +
		"**An** (*14:05:09 5/3/2024*):\n> đi ăn phở  \nnhé\n\n" +
		"**Bình** (*14:05:10 5/3/2024*):\n> ghi sổ\n\n" +
		"**An** (*14:05:11 5/3/2024*):\n> \n\n"
	assert.Equal(t, want, string(export(t, "markdown", sample())))
}

func TestJSONPreservesFields(t *testing.T) {
	out := export(t, "json", sample())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got, 3)
	assert.Equal(t, "BÃ¬nh", got[1]["sender_name"], "json export writes messages as loaded")
	assert.NotContains(t, got[2], "content")
	assert.Equal(t, []any{map[string]any{"uri": "a.jpg"}}, got[2]["photos"])
	assert.True(t, strings.HasPrefix(string(out), "[\n  {\n    \"sender_name\""))

	assert.Equal(t, "[]\n", string(export(t, "json", nil)))
}

func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(body)
	}
	t.Fatal("word/document.xml not found")
	return ""
}

func TestWord(t *testing.T) {
	out := export(t, "docx", sample())

	xml := documentXML(t, out)
	assert.Contains(t, xml, Title)
	assert.Contains(t, xml, "An ")
	assert.Contains(t, xml, "(14:05:09 5/3/2024)")
	assert.Contains(t, xml, "Bình ")
	assert.Contains(t, xml, "ghi sổ")
	assert.Contains(t, xml, "<w:b")

	doc, err := docx.Parse(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	// title + spacer, then three paragraphs per message
	doc.Document.Body.KeepElements("*docx.Paragraph")
	assert.Len(t, doc.Document.Body.Items, 2+3*3)
}

func TestPDF(t *testing.T) {
	out := export(t, "pdf", sample())
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out[len(out)-10:]), "%%EOF")
}

func TestPDFMissingFont(t *testing.T) {
	e := PDF{FontFile: filepath.Join(t.TempDir(), "missing.ttf")}
	var buf bytes.Buffer
	err := e.Export(&buf, sample())
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestPDFManyPages(t *testing.T) {
	var msgs []chat.Message
	for i := 0; i < 200; i++ {
		msgs = append(msgs, chat.Message{SenderName: "An", TimestampMS: ts, Content: chat.StringPtr(strings.Repeat("xin chào ", 20))})
	}
	out := export(t, "pdf", msgs)
	assert.Greater(t, bytes.Count(out, []byte("/Type /Page\n")), 1)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName("messages", Markdown{}))
	require.NoError(t, WriteFile(path, Markdown{Location: time.UTC}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Instagram Chat Export\n\n", string(data))

	bad := filepath.Join(dir, "bad.pdf")
	err = WriteFile(bad, PDF{FontFile: filepath.Join(dir, "missing.ttf")}, nil)
	require.Error(t, err)
	assert.NoFileExists(t, bad)
}
