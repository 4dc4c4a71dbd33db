package cache

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/interest/internal/config"
)

func TestNewRedisTopicsRequiresAddr(t *testing.T) {
	_, err := NewRedisTopics(config.RedisConfig{}, nil)
	assert.Error(t, err)
}

func TestRedisTopicsRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	cfg := config.Default().Redis
	cfg.Addr = addr
	cfg.Prefix = "interest:test:" + uuid.NewString() + ":"

	c, err := NewRedisTopics(cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "c1", []string{"jazz", "blues"}))
	require.NoError(t, c.Set(ctx, "c1", []string{"cooking"}))

	topics, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"jazz", "blues"}, topics)
}
