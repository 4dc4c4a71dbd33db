package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI calls the Claude CLI (`claude -p`) as a subprocess.
type ClaudeCLI struct {
	bin     string
	model   string
	timeout time.Duration
}

// NewClaudeCLI creates a new Claude CLI client. A zero timeout means 60s.
func NewClaudeCLI(model string, timeout time.Duration) *ClaudeCLI {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &ClaudeCLI{
		bin:     "claude",
		model:   model,
		timeout: timeout,
	}
}

func (c *ClaudeCLI) args() []string {
	return []string{"-p", "--model", c.model, "--max-turns", "1", "--append-system-prompt", topicSystemPrompt}
}

// Complete pipes the prompt to the CLI and returns its trimmed stdout.
func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, c.args()...)
	cmd.Stdin = strings.NewReader(prompt)
	// A nested CLI must not pick up the parent's CLAUDE_* settings.
	cmd.Env = filterEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("claude cli: %w", ctx.Err())
		}
		return nil, fmt.Errorf("claude cli: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, fmt.Errorf("claude cli: empty answer")
	}
	return &Response{Content: out, Provider: "claude-cli"}, nil
}

func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "CLAUDE_") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
