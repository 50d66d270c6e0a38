// Package export renders a full message history to a single document.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/textfix"
)

// Title heads every exported document.
const Title = "Instagram Chat Export"

// ErrUnknownFormat is returned by ForFormat for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Exporter writes messages in one document format.
type Exporter interface {
	// Format is the format name, also used as the file extension.
	Format() string
	Export(w io.Writer, messages []chat.Message) error
}

// Options shared by the exporters.
type Options struct {
	// Location for timestamps; nil means local time.
	Location *time.Location
	// PDFFont is an optional UTF-8 TrueType font file for the PDF exporter.
	PDFFont string
}

var registry = map[string]func(Options) Exporter{
	"markdown": func(o Options) Exporter { return Markdown{Location: o.Location} },
	"docx":     func(o Options) Exporter { return Word{Location: o.Location} },
	"pdf":      func(o Options) Exporter { return PDF{Location: o.Location, FontFile: o.PDFFont} },
	"json":     func(o Options) Exporter { return JSON{} },
}

// Formats lists the supported format names.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForFormat returns the exporter for name (case-insensitive).
func ForFormat(name string, opts Options) (Exporter, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (use %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
	return ctor(opts), nil
}

// FileName is "<base>.<format>".
func FileName(base string, e Exporter) string {
	return base + "." + e.Format()
}

// WriteFile renders the whole document in memory and then writes it to
// path, so a failed export leaves no partial file.
func WriteFile(path string, e Exporter, messages []chat.Message) error {
	var buf bytes.Buffer
	if err := e.Export(&buf, messages); err != nil {
		return fmt.Errorf("exporting %s: %w", e.Format(), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// entry is a message after the per-message transform.
type entry struct {
	Sender  string
	Time    string
	Content string
}

func toEntry(m chat.Message, loc *time.Location) entry {
	return entry{
		Sender:  textfix.Repair(m.SenderName),
		Time:    chat.FormatTimestamp(m.TimestampMS, loc),
		Content: textfix.Repair(m.Text()),
	}
}
