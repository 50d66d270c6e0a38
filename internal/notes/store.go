package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hurttlocker/chatnote/internal/chat"
)

// Note record files: note_1.json, note_2.json, ...
const (
	FilePrefix = "note_"
	FileSuffix = ".json"
)

// WriteError reports a record that could not be written. Records written
// before it stay on disk.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Stored is a note together with the 1-based ordinal it was saved under.
type Stored struct {
	Ordinal int
	Note    Note
}

// Store persists notes as numbered JSON files in Dir.
type Store struct {
	Dir string
}

// FileName returns the record file name for ordinal k.
func FileName(k int) string {
	return fmt.Sprintf("%s%d%s", FilePrefix, k, FileSuffix)
}

// WriteAll saves notes as note_1.json..note_N.json in emission order and
// returns how many were written. onSaved, if non-nil, is called after each
// record.
func (s Store) WriteAll(notes []Note, onSaved func(k int, path string)) (int, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return 0, &WriteError{Path: s.Dir, Err: err}
	}

	for i, n := range notes {
		k := i + 1
		path := filepath.Join(s.Dir, FileName(k))
		data, err := json.MarshalIndent(n, "", "  ")
		if err != nil {
			return i, &WriteError{Path: path, Err: err}
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return i, &WriteError{Path: path, Err: err}
		}
		if onSaved != nil {
			onSaved(k, path)
		}
	}
	return len(notes), nil
}

// ReadAll loads every note record in Dir, ordered by ordinal.
func (s Store) ReadAll() ([]Stored, error) {
	files, err := ListOrdinals(s.Dir, FilePrefix, FileSuffix)
	if err != nil {
		return nil, &chat.LoadError{Path: s.Dir, Err: err}
	}

	out := make([]Stored, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, &chat.LoadError{Path: f.Path, Err: err}
		}
		var n Note
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, &chat.LoadError{Path: f.Path, Err: err}
		}
		out = append(out, Stored{Ordinal: f.Ordinal, Note: n})
	}
	return out, nil
}

// Stale lists note files with an ordinal above n, left behind by an
// earlier scan that found more triggers. A missing directory has none.
func (s Store) Stale(n int) ([]OrdinalFile, error) {
	files, err := ListOrdinals(s.Dir, FilePrefix, FileSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &chat.LoadError{Path: s.Dir, Err: err}
	}
	var stale []OrdinalFile
	for _, f := range files {
		if f.Ordinal > n {
			stale = append(stale, f)
		}
	}
	return stale, nil
}

// Prune removes the stale note files above n and returns them.
func (s Store) Prune(n int) ([]OrdinalFile, error) {
	stale, err := s.Stale(n)
	if err != nil {
		return nil, err
	}
	for _, f := range stale {
		if err := os.Remove(f.Path); err != nil {
			return nil, &WriteError{Path: f.Path, Err: err}
		}
	}
	return stale, nil
}

// OrdinalFile is a numbered record file found on disk.
type OrdinalFile struct {
	Ordinal int
	Name    string
	Path    string
}

// Ordinal parses k out of "<prefix><k><suffix>".
func Ordinal(name, prefix, suffix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	num := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	k, err := strconv.Atoi(num)
	if err != nil || k < 1 {
		return 0, false
	}
	return k, true
}

// ListOrdinals returns the numbered record files in dir sorted by ordinal.
// Files that do not follow the naming pattern are skipped.
func ListOrdinals(dir, prefix, suffix string) ([]OrdinalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []OrdinalFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, ok := Ordinal(e.Name(), prefix, suffix)
		if !ok {
			continue
		}
		out = append(out, OrdinalFile{Ordinal: k, Name: e.Name(), Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}
