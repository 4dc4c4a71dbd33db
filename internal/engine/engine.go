// Package engine turns interaction events into per-user topic scores. It
// owns the accumulator state machine, per-user serialization, topic
// resolution, batch fan-out and the periodic maintenance timer.
package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lazypower/interest/internal/activity"
	"github.com/lazypower/interest/internal/clock"
	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/graph"
	"github.com/lazypower/interest/internal/keylock"
	"github.com/lazypower/interest/internal/logger"
	"github.com/lazypower/interest/internal/scoring"
	"github.com/lazypower/interest/internal/store"
)

// TopicExtractor resolves topics for content text. Implementations may be
// slow and unreliable.
type TopicExtractor interface {
	Extract(ctx context.Context, vocabulary []string, text string) ([]string, error)
}

// TopicCache is an optional shared cache of resolved content topics.
type TopicCache interface {
	Get(ctx context.Context, contentID string) ([]string, bool, error)
	Set(ctx context.Context, contentID string, topics []string) error
}

// Engine orchestrates scoring, decay and relationship maintenance.
type Engine struct {
	DB    *store.DB
	Graph *graph.Graph

	cfg       config.Config
	clock     clock.Clock
	log       *logger.Logger
	extractor TopicExtractor
	cache     TopicCache

	base     *scoring.BaseScorer
	sat      *scoring.Saturator
	decay    scoring.DecayStrategy
	momentum scoring.Momentum
	activity *activity.Classifier

	users     *keylock.Striped
	resolving singleflight.Group

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTopicCache puts a shared topic cache in front of extraction.
func WithTopicCache(c TopicCache) Option {
	return func(e *Engine) { e.cache = c }
}

// New creates a new Engine over db. extractor may be nil, in which case
// content without stored topics resolves to the fallback topic.
func New(db *store.DB, extractor TopicExtractor, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	decay, err := scoring.NewDecayStrategy(cfg.Decay)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		DB:        db,
		cfg:       cfg,
		clock:     clock.System(),
		extractor: extractor,
		base:      scoring.NewBaseScorer(cfg.Scoring),
		sat:       scoring.NewSaturator(cfg.Scoring, cfg.Saturation),
		decay:     decay,
		momentum:  scoring.NewMomentum(cfg.Momentum),
		users:     keylock.New(cfg.Engine.UserLockStripes),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	db.UseClock(e.clock)
	base := logger.OrNop(e.log)
	e.log = base.With("component", "engine")
	e.Graph = graph.New(db, cfg.Graph, e.clock, base)
	e.activity = activity.NewClassifier(cfg.Activity, db, e.clock)
	return e, nil
}

// Now is the engine's current time in epoch milliseconds.
func (e *Engine) Now() int64 {
	return e.clock.Now().UnixMilli()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Activity returns the current activity profile of userID.
func (e *Engine) Activity(ctx context.Context, userID string) (activity.Profile, error) {
	return e.activity.Profile(ctx, userID)
}

// Scores returns userID's scores as they stand now, decay applied, strongest
// first. Nothing is written.
func (e *Engine) Scores(ctx context.Context, userID string) ([]scoring.TopicScore, error) {
	stored, err := e.DB.UserScores(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := e.decay.Decay(stored, e.Now())
	scoring.SortByNet(res.Scores)
	return res.Scores, nil
}
