package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/interest/internal/metrics"
	"github.com/lazypower/interest/internal/store"
)

// vocabularyLimit bounds how many known topics are offered to the extractor.
const vocabularyLimit = 200

var errNoExtractor = errors.New("no topic extractor configured")

// resolveTopics returns the memoized topics of c, resolving them on first
// use. Concurrent resolutions of the same content share one extraction.
// Any failure yields the fallback topic, which is not memoized so a later
// pass can still resolve the real topics.
func (e *Engine) resolveTopics(ctx context.Context, c *store.Content) (topics []string, fallback bool) {
	if c.HasTopics() {
		return c.Topics, false
	}

	v, err, _ := e.resolving.Do(c.ID, func() (any, error) {
		return e.extractTopics(ctx, c)
	})
	if err == nil {
		if t, _ := v.([]string); len(t) > 0 {
			return t, false
		}
		err = errors.New("empty topic set")
	}

	metrics.IncFallback()
	e.log.Warn("topic extraction failed, using fallback", "content_id", c.ID, "fallback", e.cfg.LLM.FallbackTopic, "error", err)
	return []string{e.cfg.LLM.FallbackTopic}, true
}

func (e *Engine) extractTopics(ctx context.Context, c *store.Content) ([]string, error) {
	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx, c.ID)
		if err != nil {
			e.log.Warn("topic cache read failed", "content_id", c.ID, "error", err)
		} else if ok {
			return e.memoize(ctx, c.ID, cached)
		}
	}

	if e.extractor == nil {
		return nil, errNoExtractor
	}
	vocabulary, err := e.DB.KnownTopics(ctx, vocabularyLimit)
	if err != nil {
		return nil, err
	}

	if e.cfg.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.LLM.Timeout)
		defer cancel()
	}
	topics, err := e.extractor.Extract(ctx, vocabulary, c.Text)
	if err != nil {
		return nil, err
	}

	topics, err = e.memoize(context.WithoutCancel(ctx), c.ID, topics)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.Set(context.WithoutCancel(ctx), c.ID, topics); err != nil {
			e.log.Warn("topic cache write failed", "content_id", c.ID, "error", err)
		}
	}
	e.log.Info("topics resolved", "content_id", c.ID, "topics", topics)
	return topics, nil
}

// memoize stores topics for contentID unless another pass already did, and
// returns whichever set is now stored.
func (e *Engine) memoize(ctx context.Context, contentID string, topics []string) ([]string, error) {
	stored, err := e.DB.SetContentTopics(ctx, contentID, topics)
	if err != nil {
		return nil, err
	}
	if stored {
		return topics, nil
	}
	c, err := e.DB.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.HasTopics() {
		return nil, fmt.Errorf("content %s lost its topics", contentID)
	}
	return c.Topics, nil
}
