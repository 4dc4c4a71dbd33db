// Package cache holds the optional Redis cache of resolved content topics.
// It sits in front of the content store so that several engine processes
// sharing one Redis avoid extracting the same content twice.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/logger"
)

// RedisTopics caches content id → topic list in Redis.
type RedisTopics struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTopics connects to cfg.Addr and pings it before returning.
func NewRedisTopics(cfg config.RedisConfig, log *logger.Logger) (*RedisTopics, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisTopics{
		log:    logger.OrNop(log).With("component", "topic_cache"),
		rdb:    rdb,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}, nil
}

func (c *RedisTopics) key(contentID string) string {
	return c.prefix + contentID
}

// Get returns the cached topics of contentID. ok is false on a miss.
func (c *RedisTopics) Get(ctx context.Context, contentID string) (topics []string, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, c.key(contentID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("topic cache get %s: %w", contentID, err)
	}
	if err := json.Unmarshal(raw, &topics); err != nil {
		c.log.Warn("dropping corrupt cache entry", "content_id", contentID, "error", err)
		_ = c.rdb.Del(ctx, c.key(contentID)).Err()
		return nil, false, nil
	}
	return topics, len(topics) > 0, nil
}

// Set stores topics for contentID. Existing entries are kept, since a
// content item's topics never change once resolved.
func (c *RedisTopics) Set(ctx context.Context, contentID string, topics []string) error {
	raw, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	if err := c.rdb.SetNX(ctx, c.key(contentID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("topic cache set %s: %w", contentID, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisTopics) Close() error {
	return c.rdb.Close()
}
