// Package transcript renders stored notes as readable conversations with
// reaction notices ("Đã thích một tin nhắn.") stripped out.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/notes"
)

// Transcript files: conversation_1.md, conversation_2.md, ...
const (
	FilePrefix = "conversation_"
	FileSuffix = ".md"
)

// DefaultReactions match the notices Messenger and Instagram insert as
// plain messages when someone reacts.
var DefaultReactions = []*regexp.Regexp{
	regexp.MustCompile(`Đã thích .+\.`),
	regexp.MustCompile(`Đã bày tỏ cảm xúc .+\.`),
	regexp.MustCompile(`.+ liked a message\.`),
	regexp.MustCompile(`Reacted .+ to your message`),
}

// Renderer turns notes into transcripts.
type Renderer struct {
	Reactions []*regexp.Regexp
}

// NewRenderer returns a renderer with the default reaction patterns plus
// any extra patterns given.
func NewRenderer(extra ...string) (Renderer, error) {
	r := Renderer{Reactions: append([]*regexp.Regexp(nil), DefaultReactions...)}
	for _, p := range extra {
		re, err := regexp.Compile(p)
		if err != nil {
			return Renderer{}, fmt.Errorf("reaction pattern %q: %w", p, err)
		}
		r.Reactions = append(r.Reactions, re)
	}
	return r, nil
}

// Clean strips reaction notices and surrounding whitespace.
func (r Renderer) Clean(content string) string {
	for _, re := range r.Reactions {
		content = re.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}

// Line is one rendered message.
type Line struct {
	Sender  string
	Content string
}

// Transcript is the rendered form of one note. Ordinal and TriggerIndex tie
// it back to the note it came from.
type Transcript struct {
	Ordinal      int
	TriggerIndex int
	Lines        []Line
}

// Render cleans every context message and drops the ones left empty.
func (r Renderer) Render(ordinal int, note notes.Note) Transcript {
	t := Transcript{Ordinal: ordinal, TriggerIndex: note.TriggerIndex}
	for _, msg := range note.Context {
		if content := r.Clean(msg.Text()); content != "" {
			t.Lines = append(t.Lines, Line{Sender: msg.SenderName, Content: content})
		}
	}
	return t
}

// Header is the first line of a transcript file.
func (t Transcript) Header() string {
	return fmt.Sprintf("# Conversation Context (Trigger Message: %d)", t.TriggerIndex)
}

// String renders the transcript as markdown.
func (t Transcript) String() string {
	var b strings.Builder
	b.WriteString(t.Header())
	b.WriteString("\n\n")
	for _, l := range t.Lines {
		fmt.Fprintf(&b, "**%s**: %s\n\n", l.Sender, l.Content)
	}
	return b.String()
}

// Plain renders "sender: content" lines, one per message.
func (t Transcript) Plain() string {
	lines := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = l.Sender + ": " + l.Content
	}
	return strings.Join(lines, "\n")
}

// FileName returns the transcript file name for ordinal k.
func FileName(k int) string {
	return fmt.Sprintf("%s%d%s", FilePrefix, k, FileSuffix)
}

// Write saves t as conversation_<ordinal>.md in dir.
func Write(dir string, t Transcript) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &notes.WriteError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, FileName(t.Ordinal))
	if err := os.WriteFile(path, []byte(t.String()), 0644); err != nil {
		return "", &notes.WriteError{Path: path, Err: err}
	}
	return path, nil
}

// Combine joins every transcript in dir, in ordinal order, into one
// document without the per-file headers.
func Combine(dir string) (string, int, error) {
	files, err := notes.ListOrdinals(dir, FilePrefix, FileSuffix)
	if err != nil {
		return "", 0, &chat.LoadError{Path: dir, Err: err}
	}

	var b strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return "", 0, &chat.LoadError{Path: f.Path, Err: err}
		}
		body := string(data)
		if idx := strings.Index(body, "\n"); idx >= 0 {
			body = body[idx+1:]
		} else {
			body = ""
		}
		fmt.Fprintf(&b, "Conversation %d:\n%s\n\n---\n\n", f.Ordinal, strings.TrimSpace(body))
	}
	return b.String(), len(files), nil
}
