package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/hurttlocker/chatnote/internal/chat"
)

const (
	pdfMargin   = 50
	pdfTitleFS  = 20
	pdfBodyFS   = 12
	pdfLineH    = 16
	pdfFontName = "chatnote"
)

// PDF writes an A4 document with black sender lines and grey content.
// Without FontFile the core Helvetica font is used, which only covers
// cp1252, so most Vietnamese diacritics are lost.
type PDF struct {
	Location *time.Location
	FontFile string
}

func (PDF) Format() string { return "pdf" }

func (p PDF) Export(w io.Writer, messages []chat.Message) error {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetTitle(Title, true)
	doc.SetCreator("chatnote", true)

	family := "Helvetica"
	tr := doc.UnicodeTranslatorFromDescriptor("")
	if p.FontFile != "" {
		doc.AddUTF8Font(pdfFontName, "", p.FontFile)
		family = pdfFontName
		tr = func(s string) string { return s }
	}
	if err := doc.Error(); err != nil {
		return fmt.Errorf("loading font %s: %w", p.FontFile, err)
	}

	doc.AddPage()
	doc.SetFont(family, "", pdfTitleFS)
	doc.CellFormat(0, pdfTitleFS*1.5, tr(Title), "", 1, "C", false, 0, "")
	doc.Ln(pdfTitleFS * 2)

	doc.SetFont(family, "", pdfBodyFS)
	for _, msg := range messages {
		e := toEntry(msg, p.Location)
		doc.SetTextColor(0, 0, 0)
		doc.MultiCell(0, pdfLineH, tr(fmt.Sprintf("%s (%s):", e.Sender, e.Time)), "", "L", false)
		doc.SetTextColor(128, 128, 128)
		doc.MultiCell(0, pdfLineH, tr(e.Content), "", "L", false)
		doc.Ln(pdfLineH)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
