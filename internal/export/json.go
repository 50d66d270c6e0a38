package export

import (
	"encoding/json"
	"io"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// JSON writes the messages as an indented array, every field included.
type JSON struct{}

func (JSON) Format() string { return "json" }

func (JSON) Export(w io.Writer, messages []chat.Message) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(messages)
}
