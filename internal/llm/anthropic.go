package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const anthropicVersion = "2023-06-01"

// anthropicDefaultMaxTokens is used when the caller does not set MaxTokens;
// the Messages API requires the field.
const anthropicDefaultMaxTokens = 4000

// anthropicProvider talks to the Anthropic Messages API.
type anthropicProvider struct {
	client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Error      *anthropicError  `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (a *anthropicProvider) Name() string {
	return "anthropic/" + a.model
}

func (a *anthropicProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	req := anthropicRequest{
		Model:       a.modelFor(opts),
		MaxTokens:   opts.MaxTokens,
		System:      opts.System,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = anthropicDefaultMaxTokens
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := a.postJSON(ctx, "anthropic", a.baseURL+"/messages", headers, req, &resp, anthropicErrorMessage); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", resp.Error.Message)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	// A reply without text is still a reply; callers decide what no
	// content means.
	return strings.TrimSpace(b.String()), nil
}

func anthropicErrorMessage(body []byte) string {
	var r anthropicResponse
	if json.Unmarshal(body, &r) == nil && r.Error != nil {
		return r.Error.Message
	}
	return ""
}
