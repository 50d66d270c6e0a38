package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/hurttlocker/chatnote/internal/textfix"
)

// Default export file naming: message_1.json, message_2.json, ...
const (
	DefaultPrefix = "message_"
	DefaultSuffix = ".json"
)

// LoadOptions controls which files are read and how messages are cleaned.
type LoadOptions struct {
	Prefix string // file name prefix (default "message_")
	Suffix string // file name suffix (default ".json")
	Repair bool   // repair Latin-1 mis-encoded strings in every field
}

func (o LoadOptions) prefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

func (o LoadOptions) suffix() string {
	if o.Suffix == "" {
		return DefaultSuffix
	}
	return o.Suffix
}

// Matches reports whether a file name is a chat export file.
func (o LoadOptions) Matches(name string) bool {
	return strings.HasPrefix(name, o.prefix()) && strings.HasSuffix(name, o.suffix())
}

// LoadError reports an input file that could not be read or parsed.
// It is fatal for the whole run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads path as a directory of export files or as a single file.
func Load(path string, opts LoadOptions) ([]Message, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return LoadDir(path, opts)
	}
	return LoadFile(path, opts)
}

// LoadDir reads every matching export file in dir, concatenates their
// messages and sorts them by timestamp. Files are read in natural name
// order so equal timestamps keep file-then-position order.
func LoadDir(dir string, opts LoadOptions) ([]Message, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !opts.Matches(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	SortNatural(files)

	var all []Message
	for _, name := range files {
		msgs, err := readFile(filepath.Join(dir, name), opts)
		if err != nil {
			return nil, err
		}
		all = append(all, msgs...)
	}

	SortByTime(all)
	return all, nil
}

// LoadFile reads one file holding either an export document
// ({"messages": [...]}) or a bare array of messages.
func LoadFile(path string, opts LoadOptions) ([]Message, error) {
	msgs, err := readFile(path, opts)
	if err != nil {
		return nil, err
	}
	SortByTime(msgs)
	return msgs, nil
}

func readFile(path string, opts LoadOptions) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	raws, err := decodeMessages(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	msgs := make([]Message, 0, len(raws))
	for i, raw := range raws {
		if opts.Repair {
			raw = textfix.RepairValue(raw).(map[string]any)
		}
		m, err := fromMap(raw)
		if err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("message %d: %w", i, err)}
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func decodeMessages(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var arr []map[string]any
		if err := dec.Decode(&arr); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return arr, nil
	}

	var doc struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc.Messages, nil
}

// SortByTime orders messages by timestamp ascending, keeping the existing
// order of equal timestamps.
func SortByTime(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].TimestampMS < msgs[j].TimestampMS
	})
}

// SortNatural sorts names so that embedded numbers compare numerically
// (message_2.json before message_10.json).
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return naturalLess(names[i], names[j])
	})
}

func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			na, restA := leadingNumber(a)
			nb, restB := leadingNumber(b)
			if na != nb {
				return na < nb
			}
			a, b = restA, restB
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingNumber(s string) (uint64, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		n = ^uint64(0)
	}
	return n, s[i:]
}
