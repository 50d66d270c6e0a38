// Package aggregate collects extracted event notes into a spreadsheet.
package aggregate

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/extract"
	"github.com/hurttlocker/chatnote/internal/notes"
)

// EventRecord is one parsed event note. Ordinal is the note it came from.
type EventRecord struct {
	Ordinal  int    `json:"ordinal"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Location string `json:"location"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
	Context  string `json:"context"`
}

// Field is one spreadsheet column and the rule that fills it.
type Field struct {
	Column  string
	Width   float64
	Pattern *regexp.Regexp
	Ref     func(r *EventRecord) *string
}

// labelPattern matches "Label: value" at the start of a line, after an
// optional bullet or list number and with optional bold markers
// ("- **Loại:** x", "1. **Loại**: x", "•\tLoại: x"). A bold label anywhere
// in a line ("- Thông tin: **Loại**: x") also matches.
func labelPattern(label string) *regexp.Regexp {
	l := regexp.QuoteMeta(label)
	return regexp.MustCompile(`(?m)` +
		`^[ \t]*(?:(?:[-*+•]|\d+[.)])[ \t]*)?(?:\*\*)?` + l + `(?:\*\*)?[ \t]*:(?:\*\*)?[ \t]*(.+)$` +
		`|\*\*` + l + `(?:\*\*[ \t]*:|:\*\*)[ \t]*(.+)$`)
}

// Fields lists the columns in sheet order.
var Fields = []Field{
	{"Tên địa điểm/sự kiện", 30, regexp.MustCompile(`(?m)^#+[ \t]+(.+)$`), func(r *EventRecord) *string { return &r.Title }},
	{"Loại", 15, labelPattern("Loại"), func(r *EventRecord) *string { return &r.Category }},
	{"Địa điểm", 30, labelPattern("Địa điểm"), func(r *EventRecord) *string { return &r.Location }},
	{"Thời gian", 20, labelPattern("Thời gian"), func(r *EventRecord) *string { return &r.Time }},
	{"Ghi chú", 50, labelPattern("Ghi chú"), func(r *EventRecord) *string { return &r.Notes }},
	{"Ngữ cảnh", 50, labelPattern("Ngữ cảnh"), func(r *EventRecord) *string { return &r.Context }},
}

// Parse extracts every field from an event note. Missing fields stay empty.
func Parse(ordinal int, markdown string) EventRecord {
	r := EventRecord{Ordinal: ordinal}
	for _, f := range Fields {
		m := f.Pattern.FindStringSubmatch(markdown)
		if m == nil {
			continue
		}
		for _, v := range m[1:] {
			if v != "" {
				*f.Ref(&r) = strings.TrimSpace(v)
				break
			}
		}
	}
	return r
}

// Row returns the record's values in column order.
func (r EventRecord) Row() []string {
	row := make([]string, len(Fields))
	for i, f := range Fields {
		row[i] = *f.Ref(&r)
	}
	return row
}

// ReadDir parses every event_<k>.md in dir in ordinal order.
func ReadDir(dir string) ([]EventRecord, error) {
	files, err := notes.ListOrdinals(dir, extract.FilePrefix, extract.FileSuffix)
	if err != nil {
		return nil, &chat.LoadError{Path: dir, Err: err}
	}

	records := make([]EventRecord, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, &chat.LoadError{Path: f.Path, Err: err}
		}
		records = append(records, Parse(f.Ordinal, string(data)))
	}
	return records, nil
}

// FileName is the spreadsheet name for the local date of now.
func FileName(now time.Time) string {
	return fmt.Sprintf("events_%s.xlsx", now.Format("2006-01-02"))
}
