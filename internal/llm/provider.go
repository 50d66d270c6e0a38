// Package llm is the text-completion capability used by event extraction.
// Providers talk to their HTTP APIs directly with net/http.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when the API answers without any content.
var ErrEmptyResponse = errors.New("no content in completion response")

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 120 * time.Second

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "openai/gpt-4o-mini").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0 = omitted, provider default
	Model       string  // override model for this request
	System      string  // system prompt (optional)
}

// Config holds provider configuration.
type Config struct {
	Provider string // "openai", "openrouter", "google"
	Model    string
	APIKey   string
	BaseURL  string // empty = provider default
	Timeout  time.Duration
}

// Provider defaults.
const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-3.5-turbo"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "openai/gpt-4o-mini"
	DefaultGoogleBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGoogleModel       = "gemini-2.5-flash"
)

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		// OpenAI-compatible servers (LM Studio, Ollama, vLLM) often run without a key.
		return &openaiProvider{
			label:   "openai",
			apiKey:  cfg.APIKey,
			model:   firstNonEmpty(cfg.Model, DefaultOpenAIModel),
			baseURL: strings.TrimRight(firstNonEmpty(cfg.BaseURL, DefaultOpenAIBaseURL), "/"),
			client:  client,
		}, nil

	case "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter provider requires an API key (OPENROUTER_API_KEY)")
		}
		return &openaiProvider{
			label:   "openrouter",
			apiKey:  cfg.APIKey,
			model:   firstNonEmpty(cfg.Model, DefaultOpenRouterModel),
			baseURL: strings.TrimRight(firstNonEmpty(cfg.BaseURL, DefaultOpenRouterBaseURL), "/"),
			client:  client,
			headers: map[string]string{
				"HTTP-Referer": "https://github.com/hurttlocker/chatnote",
				"X-Title":      "chatnote",
			},
		}, nil

	case "google":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("google provider requires an API key (GEMINI_API_KEY or GOOGLE_API_KEY)")
		}
		return &googleProvider{
			apiKey:  cfg.APIKey,
			model:   firstNonEmpty(cfg.Model, DefaultGoogleModel),
			baseURL: strings.TrimRight(firstNonEmpty(cfg.BaseURL, DefaultGoogleBaseURL), "/"),
			client:  client,
		}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai, openrouter, google)", cfg.Provider)
	}
}

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
