// Package config resolves chatnote settings from built-in defaults, a yaml
// file, a .env file, the environment and CLI flags, in that order, keeping
// track of where each value came from.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceDotenv  ValueSource = "dotenv"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Key names one setting. Keys double as the labels printed by `chatnote config`.
type Key string

const (
	KeyProvider         Key = "llm.provider"
	KeyBaseURL          Key = "llm.base_url"
	KeyAPIKey           Key = "llm.api_key"
	KeyModel            Key = "llm.model"
	KeyTimeout          Key = "llm.timeout"
	KeyTrigger          Key = "trigger.phrase"
	KeyRadius           Key = "trigger.radius"
	KeyContinueOnError  Key = "extract.continue_on_error"
	KeyConcurrency      Key = "extract.concurrency"
	KeyDBPath           Key = "db_path"
	KeyTimezone         Key = "timezone"
	KeyPDFFont          Key = "pdf_font"
	KeyMessagesDir      Key = "dirs.messages"
	KeyNotesDir         Key = "dirs.notes"
	KeyConversationsDir Key = "dirs.conversations"
	KeyExtractedDir     Key = "dirs.extracted"
	KeyOutputDir        Key = "dirs.output"
)

type setting struct {
	key Key
	def string
	env []string // later entries win
}

// settings is the resolution table, in display order.
var settings = []setting{
	{KeyProvider, "openai", []string{"CHATNOTE_LLM_PROVIDER"}},
	{KeyBaseURL, "", []string{"OPENAI_BASE_URL", "CHATNOTE_BASE_URL"}},
	{KeyAPIKey, "", nil},
	{KeyModel, "", []string{"OPENAI_MODEL", "CHATNOTE_MODEL"}},
	{KeyTimeout, "120s", []string{"CHATNOTE_TIMEOUT"}},
	{KeyTrigger, "ghi sổ", []string{"CHATNOTE_TRIGGER"}},
	{KeyRadius, "10", []string{"CHATNOTE_RADIUS"}},
	{KeyContinueOnError, "false", []string{"CHATNOTE_CONTINUE_ON_ERROR"}},
	{KeyConcurrency, "1", []string{"CHATNOTE_CONCURRENCY"}},
	{KeyDBPath, "~/.chatnote/chatnote.db", []string{"CHATNOTE_DB"}},
	{KeyTimezone, "", []string{"CHATNOTE_TIMEZONE"}},
	{KeyPDFFont, "", []string{"CHATNOTE_PDF_FONT"}},
	{KeyMessagesDir, ".", []string{"CHATNOTE_MESSAGES_DIR"}},
	{KeyNotesDir, "notes", []string{"CHATNOTE_NOTES_DIR"}},
	{KeyConversationsDir, "conversations", []string{"CHATNOTE_CONVERSATIONS_DIR"}},
	{KeyExtractedDir, "extracted", []string{"CHATNOTE_EXTRACTED_DIR"}},
	{KeyOutputDir, "output", []string{"CHATNOTE_OUTPUT_DIR"}},
}

// apiKeyEnv lists the key variables consulted for each provider.
var apiKeyEnv = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"google":     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// Override is a value given on the command line.
type Override struct {
	Key   Key
	Value string
	Flag  string
}

type ResolveOptions struct {
	ConfigPath string // empty = DefaultConfigPath()
	EnvFile    string // empty = ".env" in the working directory
	CLI        []Override
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`
	EnvFile    string `json:"env_file"`

	Values    map[Key]ResolvedValue `json:"values"`
	Reactions []string              `json:"reactions,omitempty"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	Timezone string `yaml:"timezone"`
	PDFFont  string `yaml:"pdf_font"`
	LLM      struct {
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"llm"`
	Trigger struct {
		Phrase string `yaml:"phrase"`
		Radius *int   `yaml:"radius"`
	} `yaml:"trigger"`
	Extract struct {
		ContinueOnError *bool `yaml:"continue_on_error"`
		Concurrency     *int  `yaml:"concurrency"`
	} `yaml:"extract"`
	Dirs struct {
		Messages      string `yaml:"messages"`
		Notes         string `yaml:"notes"`
		Conversations string `yaml:"conversations"`
		Extracted     string `yaml:"extracted"`
		Output        string `yaml:"output"`
	} `yaml:"dirs"`
	Reactions []string `yaml:"reactions"`
}

func (c *fileConfig) values() map[Key]string {
	out := map[Key]string{
		KeyProvider:         c.LLM.Provider,
		KeyBaseURL:          c.LLM.BaseURL,
		KeyAPIKey:           c.LLM.APIKey,
		KeyModel:            c.LLM.Model,
		KeyTimeout:          c.LLM.Timeout,
		KeyTrigger:          c.Trigger.Phrase,
		KeyDBPath:           c.DBPath,
		KeyTimezone:         c.Timezone,
		KeyPDFFont:          c.PDFFont,
		KeyMessagesDir:      c.Dirs.Messages,
		KeyNotesDir:         c.Dirs.Notes,
		KeyConversationsDir: c.Dirs.Conversations,
		KeyExtractedDir:     c.Dirs.Extracted,
		KeyOutputDir:        c.Dirs.Output,
	}
	if c.Trigger.Radius != nil {
		out[KeyRadius] = strconv.Itoa(*c.Trigger.Radius)
	}
	if c.Extract.ContinueOnError != nil {
		out[KeyContinueOnError] = strconv.FormatBool(*c.Extract.ContinueOnError)
	}
	if c.Extract.Concurrency != nil {
		out[KeyConcurrency] = strconv.Itoa(*c.Extract.Concurrency)
	}
	return out
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatnote", "config.yaml")
}

// Resolve applies every source in priority order. Missing config and .env
// files are not an error; unreadable or malformed ones are.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	envFile := strings.TrimSpace(opts.EnvFile)
	if envFile == "" {
		envFile = ".env"
	}

	out := ResolvedConfig{
		ConfigPath: path,
		EnvFile:    envFile,
		Values:     make(map[Key]ResolvedValue, len(settings)),
	}

	for _, s := range settings {
		out.Values[s.key] = ResolvedValue{Value: s.def, Source: SourceDefault, From: "built-in default"}
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		for k, v := range cfg.values() {
			out.apply(k, v, SourceConfig, path)
		}
		out.Reactions = cfg.Reactions
	}

	dotenv, err := loadDotenv(envFile)
	if err != nil {
		return out, err
	}

	lookup := func(k Key, name string) {
		if v, ok := dotenv[name]; ok {
			out.apply(k, v, SourceDotenv, envFile+":"+name)
		}
		out.apply(k, os.Getenv(name), SourceEnv, name)
	}
	for _, s := range settings {
		for _, name := range s.env {
			lookup(s.key, name)
		}
	}

	// Flags may change the provider, so its key is looked up last.
	for _, o := range opts.CLI {
		out.apply(o.Key, o.Value, SourceCLI, o.Flag)
	}
	provider := strings.ToLower(out.Get(KeyProvider).Value)
	for _, name := range apiKeyEnv[provider] {
		lookup(KeyAPIKey, name)
	}
	for _, o := range opts.CLI {
		if o.Key == KeyAPIKey {
			out.apply(o.Key, o.Value, SourceCLI, o.Flag)
		}
	}

	for _, k := range []Key{KeyDBPath, KeyPDFFont} {
		if v := out.Values[k]; v.Value != "" {
			v.Value = expandUserPath(v.Value)
			out.Values[k] = v
		}
	}
	return out, nil
}

// Get returns the resolved value for k.
func (r ResolvedConfig) Get(k Key) ResolvedValue {
	if v, ok := r.Values[k]; ok {
		return v
	}
	return ResolvedValue{Source: SourceUnknown}
}

// Entry is one setting in display order.
type Entry struct {
	Key Key `json:"key"`
	ResolvedValue
}

// Entries lists every setting in table order with the API key masked.
func (r ResolvedConfig) Entries() []Entry {
	out := make([]Entry, 0, len(settings))
	for _, s := range settings {
		v := r.Get(s.key)
		if s.key == KeyAPIKey {
			v.Value = Mask(v.Value)
		}
		out = append(out, Entry{Key: s.key, ResolvedValue: v})
	}
	return out
}

// Mask hides all but the first four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

func (r *ResolvedConfig) apply(k Key, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	r.Values[k] = ResolvedValue{Value: v, Source: source, From: from}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func loadDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
