package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// Markdown writes each message as a bold sender line and a blockquote.
type Markdown struct {
	Location *time.Location
}

func (Markdown) Format() string { return "markdown" }

func (m Markdown) Export(w io.Writer, messages []chat.Message) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n\n", Title)
	for _, msg := range messages {
		e := toEntry(msg, m.Location)
		content := strings.ReplaceAll(e.Content, "\n", "  \n")
		fmt.Fprintf(bw, "**%s** (*%s*):\n> %s\n\n", e.Sender, e.Time, content)
	}
	return bw.Flush()
}
