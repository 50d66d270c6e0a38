package export

import (
	"fmt"
	"io"
	"time"

	"github.com/fumiama/go-docx"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// Word writes a .docx document: a bold sender run and an italic time run,
// then the content paragraph and a spacer.
type Word struct {
	Location *time.Location
}

func (Word) Format() string { return "docx" }

func (wd Word) Export(w io.Writer, messages []chat.Message) error {
	doc := docx.New().WithDefaultTheme().WithA4Page()

	// Sizes are in half-points.
	doc.AddParagraph().AddText(Title).Bold().Size("32")
	doc.AddParagraph()

	for _, msg := range messages {
		e := toEntry(msg, wd.Location)
		p := doc.AddParagraph()
		p.AddText(e.Sender + " ").Bold()
		p.AddText("(" + e.Time + ")").Italic()
		content := doc.AddParagraph()
		if e.Content != "" {
			content.AddText(e.Content)
		}
		doc.AddParagraph()
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("writing docx: %w", err)
	}
	return nil
}
