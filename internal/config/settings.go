package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hurttlocker/chatnote/internal/llm"
)

// Settings is the typed configuration handed to every command.
type Settings struct {
	LLM llm.Config

	Trigger         string
	Radius          int
	ContinueOnError bool
	Concurrency     int

	DBPath   string
	Location *time.Location
	PDFFont  string

	MessagesDir      string
	NotesDir         string
	ConversationsDir string
	ExtractedDir     string
	OutputDir        string

	// Reactions are extra reaction-notice patterns from the config file.
	Reactions []string
}

// Settings converts the resolved strings, naming the source of any value
// that does not parse.
func (r ResolvedConfig) Settings() (Settings, error) {
	s := Settings{
		LLM: llm.Config{
			Provider: r.Get(KeyProvider).Value,
			BaseURL:  r.Get(KeyBaseURL).Value,
			APIKey:   r.Get(KeyAPIKey).Value,
			Model:    r.Get(KeyModel).Value,
		},
		Trigger:          r.Get(KeyTrigger).Value,
		DBPath:           r.Get(KeyDBPath).Value,
		PDFFont:          r.Get(KeyPDFFont).Value,
		MessagesDir:      r.Get(KeyMessagesDir).Value,
		NotesDir:         r.Get(KeyNotesDir).Value,
		ConversationsDir: r.Get(KeyConversationsDir).Value,
		ExtractedDir:     r.Get(KeyExtractedDir).Value,
		OutputDir:        r.Get(KeyOutputDir).Value,
		Reactions:        r.Reactions,
	}

	var err error
	if s.LLM.Timeout, err = r.duration(KeyTimeout); err != nil {
		return s, err
	}
	if s.Radius, err = r.integer(KeyRadius); err != nil {
		return s, err
	}
	if s.Radius < 0 {
		return s, r.invalid(KeyRadius, fmt.Errorf("must not be negative"))
	}
	if s.Concurrency, err = r.integer(KeyConcurrency); err != nil {
		return s, err
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.ContinueOnError, err = r.boolean(KeyContinueOnError); err != nil {
		return s, err
	}

	s.Location = time.Local
	if tz := r.Get(KeyTimezone).Value; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return s, r.invalid(KeyTimezone, err)
		}
		s.Location = loc
	}
	return s, nil
}

func (r ResolvedConfig) invalid(k Key, err error) error {
	v := r.Get(k)
	return fmt.Errorf("invalid %s %q (from %s): %w", k, v.Value, v.From, err)
}

func (r ResolvedConfig) integer(k Key) (int, error) {
	n, err := strconv.Atoi(r.Get(k).Value)
	if err != nil {
		return 0, r.invalid(k, err)
	}
	return n, nil
}

func (r ResolvedConfig) boolean(k Key) (bool, error) {
	b, err := strconv.ParseBool(r.Get(k).Value)
	if err != nil {
		return false, r.invalid(k, err)
	}
	return b, nil
}

func (r ResolvedConfig) duration(k Key) (time.Duration, error) {
	v := r.Get(k).Value
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, r.invalid(k, err)
	}
	return d, nil
}
