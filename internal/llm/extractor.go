package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/logger"
)

// ErrNoTopics is returned when the model answered without any usable topic.
var ErrNoTopics = errors.New("no topics extracted")

// Extractor turns content text into a small set of topics with an LLM.
type Extractor struct {
	client  Client
	cfg     config.LLMConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewExtractor(client Client, cfg config.LLMConfig, log *logger.Logger) *Extractor {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	if cfg.MaxTopics < 1 {
		cfg.MaxTopics = 3
	}
	return &Extractor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.OrNop(log).With("component", "extractor"),
	}
}

// Extract returns at most MaxTopics normalized topics for text. Existing
// vocabulary is offered to the model first. Any failure is returned to the
// caller, which decides on a fallback.
func (e *Extractor) Extract(ctx context.Context, vocabulary []string, text string) ([]string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("extract topics: %w", err)
	}

	prompt := TopicExtractionPrompt(vocabulary, Truncate(text, e.cfg.MaxContentChars), e.cfg.MaxTopics)
	resp, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract topics: %w", err)
	}

	topics := ParseTopics(resp.Content, e.cfg.MaxTopics)
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	e.log.Debug("topics extracted", "provider", resp.Provider, "topics", topics)
	return topics, nil
}

// Truncate cuts text to at most max runes, marking the cut with "...".
// A non-positive max leaves text untouched.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}

// ParseTopics splits a comma-separated model answer into lowercase, unique
// topics, keeping at most max of them in answer order.
func ParseTopics(answer string, max int) []string {
	answer = strings.TrimSpace(answer)
	if i := strings.LastIndex(answer, "\n"); i >= 0 && !strings.Contains(answer[:i], ",") {
		// Some models put a preamble line before the list.
		answer = answer[i+1:]
	}

	var topics []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(answer, ",") {
		t := normalizeTopic(part)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
		if max > 0 && len(topics) == max {
			break
		}
	}
	return topics
}

func normalizeTopic(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`*.-")
	s = strings.TrimSpace(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
