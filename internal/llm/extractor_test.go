package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/interest/internal/config"
)

func TestParseTopics(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		max    int
		want   []string
	}{
		{"simple", "jazz, blues, swing", 3, []string{"jazz", "blues", "swing"}},
		{"limit", "jazz, blues, swing, bebop", 3, []string{"jazz", "blues", "swing"}},
		{"normalize", " Jazz ,\"Blues\",  Big   Band. ", 3, []string{"jazz", "blues", "big band"}},
		{"dedupe", "jazz, JAZZ, blues", 3, []string{"jazz", "blues"}},
		{"preamble", "Here are the topics:\ncooking, baking", 3, []string{"cooking", "baking"}},
		{"empty", " , ,", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTopics(tt.answer, tt.max))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héll...", Truncate("héllo wörld", 4))
	assert.Equal(t, "anything", Truncate("anything", 0))
}

func TestExtractorTruncatesContent(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "cooking", Provider: "mock"}}
	cfg := config.Default().LLM
	ex := NewExtractor(mock, cfg, nil)

	long := strings.Repeat("a", 5000)
	topics, err := ex.Extract(context.Background(), []string{"baking"}, long)
	require.NoError(t, err)
	assert.Equal(t, []string{"cooking"}, topics)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], strings.Repeat("a", 2000)+"...")
	assert.NotContains(t, calls[0], strings.Repeat("a", 2001))
	assert.Contains(t, calls[0], "EXISTING TOPICS: baking")
}

func TestExtractorErrors(t *testing.T) {
	cfg := config.Default().LLM

	failing := NewExtractor(&MockClient{Err: errors.New("boom")}, cfg, nil)
	_, err := failing.Extract(context.Background(), nil, "text")
	assert.Error(t, err)

	empty := NewExtractor(&MockClient{}, cfg, nil)
	_, err = empty.Extract(context.Background(), nil, "text")
	assert.ErrorIs(t, err, ErrNoTopics)
}

func TestExtractorHonorsContext(t *testing.T) {
	cfg := config.Default().LLM
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	ex := NewExtractor(&MockClient{Response: &Response{Content: "jazz"}}, cfg, nil)

	_, err := ex.Extract(context.Background(), nil, "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.Extract(ctx, nil, "second")
	assert.Error(t, err)
}
