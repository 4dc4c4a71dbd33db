package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPI     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Anthropic calls the Anthropic Messages API directly.
type Anthropic struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropic creates a new Anthropic API client. A zero timeout means 60s.
func NewAnthropic(apiKey, model string, timeout time.Duration) *Anthropic {
	return &Anthropic{
		apiKey: apiKey,
		model:  model,
		url:    anthropicAPI,
		client: newHTTPClient(timeout),
	}
}

// Complete sends a prompt to the Anthropic API.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (*Response, error) {
	req := anthropicRequest{
		Model:       a.model,
		System:      topicSystemPrompt,
		MaxTokens:   extractionMaxTokens,
		Temperature: extractionTemperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var out anthropicResponse
	if err := postJSON(ctx, a.client, "anthropic", a.url, headers, req, &out); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Response{
		Content:    strings.TrimSpace(text.String()),
		Provider:   "anthropic",
		TokensUsed: out.Usage.InputTokens + out.Usage.OutputTokens,
	}, nil
}
