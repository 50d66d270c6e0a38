package llm

import (
	"context"
	"fmt"
	"net/http"
)

// openaiProvider implements Provider for the OpenAI chat completions API
// and compatible servers (OpenRouter, Ollama, LM Studio, vLLM).
type openaiProvider struct {
	label   string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	headers map[string]string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error *chatError `json:"error,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (o *openaiProvider) Name() string {
	return o.label + "/" + o.model
}

func (o *openaiProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}

	messages := make([]chatMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	header := http.Header{}
	if o.apiKey != "" {
		header.Set("Authorization", "Bearer "+o.apiKey)
	}
	for k, v := range o.headers {
		header.Set(k, v)
	}

	var cr chatResponse
	if err := postJSON(ctx, o.client, o.label, o.baseURL+"/chat/completions", header, req, &cr); err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", fmt.Errorf("%s API error: %s", o.label, cr.Error.Message)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == nil {
		return "", ErrEmptyResponse
	}
	return completionText(*cr.Choices[0].Message.Content)
}
