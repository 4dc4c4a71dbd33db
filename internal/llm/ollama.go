package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Ollama calls a local Ollama instance through its chat endpoint.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllama creates a new Ollama client. A zero timeout means 60s.
func NewOllama(url, model string, timeout time.Duration) *Ollama {
	return &Ollama{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		client: newHTTPClient(timeout),
	}
}

// Complete sends a prompt to Ollama's /api/chat endpoint.
func (o *Ollama) Complete(ctx context.Context, prompt string) (*Response, error) {
	req := ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: topicSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Options: map[string]any{
			"temperature": extractionTemperature,
			"num_predict": extractionMaxTokens,
		},
	}

	var out ollamaChatResponse
	if err := postJSON(ctx, o.client, "ollama", o.url+"/api/chat", nil, req, &out); err != nil {
		return nil, err
	}
	return &Response{
		Content:    strings.TrimSpace(out.Message.Content),
		Provider:   "ollama",
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}
