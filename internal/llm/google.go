package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// googleProvider calls the Gemini generateContent endpoint.
type googleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *googleProvider) Name() string {
	return "google/" + g.model
}

func (g *googleProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	model := firstNonEmpty(opts.Model, g.model)

	var req geminiRequest
	req.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	if opts.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: opts.System}}}
	}
	req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	req.GenerationConfig.Temperature = opts.Temperature

	header := http.Header{}
	header.Set("x-goog-api-key", g.apiKey)

	var resp geminiResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	if err := postJSON(ctx, g.client, "google", url, header, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("google API error: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	// Long answers arrive split across several parts.
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return completionText(text.String())
}
