// Package notes finds trigger-phrase messages in an ordered chat log and
// stores each one, with its surrounding context window, as a numbered note.
package notes

import (
	"strings"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// Defaults for the trigger scanner.
const (
	DefaultPhrase = "ghi sổ"
	DefaultRadius = 10
)

// Note is one trigger message plus its context window. TriggerIndex is the
// position of the trigger in the global message sequence, not in Context.
type Note struct {
	TriggerIndex int            `json:"trigger_message_index"`
	Context      []chat.Message `json:"context_messages"`
}

// Trigger configures the scanner.
type Trigger struct {
	Phrase string
	Radius int
}

// DefaultTrigger returns the "ghi sổ" trigger with a 10-message radius.
func DefaultTrigger() Trigger {
	return Trigger{Phrase: DefaultPhrase, Radius: DefaultRadius}
}

// Window returns the inclusive [start, end] bounds of the context window
// around index i in a sequence of length n.
func Window(i, n, radius int) (start, end int) {
	if radius < 0 {
		radius = 0
	}
	start = max(0, i-radius)
	end = min(n-1, i+radius)
	return start, end
}

// Scan emits one note per message whose content contains the trigger
// phrase, compared case-insensitively. Overlapping windows are not merged.
func Scan(messages []chat.Message, trigger Trigger) []Note {
	phrase := strings.ToLower(strings.TrimSpace(trigger.Phrase))
	if phrase == "" {
		return nil
	}

	var out []Note
	for i, msg := range messages {
		if msg.Content == nil || !strings.Contains(strings.ToLower(*msg.Content), phrase) {
			continue
		}
		start, end := Window(i, len(messages), trigger.Radius)
		ctx := make([]chat.Message, end-start+1)
		copy(ctx, messages[start:end+1])
		out = append(out, Note{TriggerIndex: i, Context: ctx})
	}
	return out
}

// Trigger returns the trigger message itself, located inside Context for
// a note scanned with the given radius.
func (n Note) Trigger(radius int) (chat.Message, bool) {
	offset := min(n.TriggerIndex, max(radius, 0))
	if offset < 0 || offset >= len(n.Context) {
		return chat.Message{}, false
	}
	return n.Context[offset], true
}
