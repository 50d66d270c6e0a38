// Package extract turns saved notes into free-form event notes with one
// completion per note.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hurttlocker/chatnote/internal/llm"
	"github.com/hurttlocker/chatnote/internal/notes"
	"github.com/hurttlocker/chatnote/internal/transcript"
)

// Event record files: event_1.md, event_2.md, ...
const (
	FilePrefix = "event_"
	FileSuffix = ".md"
)

// FileName returns the event file name for note ordinal k.
func FileName(k int) string {
	return fmt.Sprintf("%s%d%s", FilePrefix, k, FileSuffix)
}

// ExtractionError reports a note whose completion failed or came back empty.
type ExtractionError struct {
	Ordinal int
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting note %d: %v", e.Ordinal, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Result summarizes a run.
type Result struct {
	Total   int
	Written int
	Failed  []*ExtractionError
}

// Extractor runs the completion for each note and writes the answers to Dir.
type Extractor struct {
	Provider llm.Provider
	Trigger  string
	Renderer transcript.Renderer
	Dir      string

	// ContinueOnError logs and skips a failed note instead of stopping the run.
	ContinueOnError bool
	// Concurrency > 1 allows that many completions in flight.
	Concurrency int

	Log zerolog.Logger

	// OnStart is called before note i (1-based) of total is sent.
	OnStart func(i, total, ordinal int)
	// OnSaved is called after an event file is written.
	OnSaved func(ordinal int, path string)
}

// ExtractNote renders one note and asks the provider for its event note.
func (e *Extractor) ExtractNote(ctx context.Context, s notes.Stored) (string, error) {
	t := e.Renderer.Render(s.Ordinal, s.Note)
	prompt := Prompt(e.Trigger, t.Plain())

	out, err := e.Provider.Complete(ctx, prompt, llm.CompletionOpts{System: SystemPrompt})
	if err != nil {
		return "", &ExtractionError{Ordinal: s.Ordinal, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &ExtractionError{Ordinal: s.Ordinal, Err: llm.ErrEmptyResponse}
	}
	return out, nil
}

// Run extracts every note, in ordinal order unless Concurrency > 1. Each
// answer is written as event_<ordinal>.md. Write failures always stop the
// run; extraction failures stop it unless ContinueOnError is set.
func (e *Extractor) Run(ctx context.Context, stored []notes.Stored) (Result, error) {
	ordered := make([]notes.Stored, len(stored))
	copy(ordered, stored)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return Result{Total: len(ordered)}, &notes.WriteError{Path: e.Dir, Err: err}
	}

	if e.Concurrency > 1 {
		return e.runPool(ctx, ordered)
	}
	return e.runSequential(ctx, ordered)
}

func (e *Extractor) runSequential(ctx context.Context, ordered []notes.Stored) (Result, error) {
	res := Result{Total: len(ordered)}
	for i, s := range ordered {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.OnStart != nil {
			e.OnStart(i+1, len(ordered), s.Ordinal)
		}

		path, err := e.extractOne(ctx, s)
		if err != nil {
			var xerr *ExtractionError
			if e.ContinueOnError && errors.As(err, &xerr) && ctx.Err() == nil {
				e.Log.Warn().Int("note", s.Ordinal).Err(xerr.Err).Msg("skipping note")
				res.Failed = append(res.Failed, xerr)
				continue
			}
			return res, err
		}
		res.Written++
		if e.OnSaved != nil {
			e.OnSaved(s.Ordinal, path)
		}
	}
	return res, nil
}

func (e *Extractor) runPool(ctx context.Context, ordered []notes.Stored) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := Result{Total: len(ordered)}
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		started  int
	)
	sem := make(chan struct{}, e.Concurrency)

	for _, s := range ordered {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(s notes.Stored) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			started++
			if e.OnStart != nil {
				e.OnStart(started, len(ordered), s.Ordinal)
			}
			mu.Unlock()

			path, err := e.extractOne(ctx, s)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var xerr *ExtractionError
				if e.ContinueOnError && errors.As(err, &xerr) && ctx.Err() == nil {
					e.Log.Warn().Int("note", s.Ordinal).Err(xerr.Err).Msg("skipping note")
					res.Failed = append(res.Failed, xerr)
					return
				}
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			res.Written++
			if e.OnSaved != nil {
				e.OnSaved(s.Ordinal, path)
			}
		}(s)
	}
	wg.Wait()

	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].Ordinal < res.Failed[j].Ordinal })
	if firstErr != nil {
		return res, firstErr
	}
	return res, ctx.Err()
}

func (e *Extractor) extractOne(ctx context.Context, s notes.Stored) (string, error) {
	e.Log.Debug().Int("note", s.Ordinal).Int("trigger_index", s.Note.TriggerIndex).Msg("extracting")

	out, err := e.ExtractNote(ctx, s)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.Dir, FileName(s.Ordinal))
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return "", &notes.WriteError{Path: path, Err: err}
	}
	return path, nil
}

// Ping sends a fixed greeting and returns the provider's answer.
func Ping(ctx context.Context, p llm.Provider) (string, error) {
	out, err := p.Complete(ctx, pingPrompt, llm.CompletionOpts{System: pingSystem})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}
