package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/lazypower/interest/internal/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		want    string
		wantErr bool
	}{
		{"claude cli", config.LLMConfig{Provider: "claude-cli", Model: "haiku"}, "*llm.ClaudeCLI", false},
		{"anthropic", config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key"}, "*llm.Anthropic", false},
		{"anthropic without key", config.LLMConfig{Provider: "anthropic"}, "", true},
		{"ollama", config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2"}, "*llm.Ollama", false},
		{"mock", config.LLMConfig{Provider: "mock"}, "*llm.MockClient", false},
		{"unknown", config.LLMConfig{Provider: "gpt"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %T", client)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if got := fmt.Sprintf("%T", client); got != tt.want {
				t.Errorf("client = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFilterEnv(t *testing.T) {
	env := []string{
		"HOME=/home/user",
		"CLAUDE_SESSION_ID=abc123",
		"CLAUDE_TRANSCRIPT=/tmp/t.jsonl",
		"PATH=/usr/bin",
	}
	filtered := filterEnv(env)
	if len(filtered) != 2 {
		t.Errorf("expected 2 vars, got %d: %v", len(filtered), filtered)
	}
	for _, e := range filtered {
		if e == "CLAUDE_SESSION_ID=abc123" || e == "CLAUDE_TRANSCRIPT=/tmp/t.jsonl" {
			t.Errorf("CLAUDE_ var not filtered: %s", e)
		}
	}
}

func TestNewClientMock(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "mock"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Complete(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "" {
		t.Errorf("mock content = %q, want empty", resp.Content)
	}
}

func TestTopicExtractionPrompt(t *testing.T) {
	p := TopicExtractionPrompt([]string{"jazz", "cooking"}, "a night of bebop", 3)
	for _, want := range []string{"EXISTING TOPICS: jazz, cooking", "CONTENT: a night of bebop", "maximum 3"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(TopicExtractionPrompt(nil, "x", 3), "(none yet)") {
		t.Error("empty vocabulary should be marked")
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	calls := mock.Calls()
	if len(calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(calls))
	}
	if calls[0] != "test prompt" {
		t.Errorf("call[0] = %q, want %q", calls[0], "test prompt")
	}
}
