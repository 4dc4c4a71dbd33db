// Package graph maintains the topic relationship graph: symmetric,
// weighted co-occurrence links between topics that let interest in one
// topic spill over into its neighbours.
package graph

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/lazypower/interest/internal/clock"
	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/keylock"
	"github.com/lazypower/interest/internal/logger"
	"github.com/lazypower/interest/internal/metrics"
	"github.com/lazypower/interest/internal/store"
)

// Activity-aware decay tuning.
const (
	weekWeight     = 1.0
	monthWeight    = 0.5
	userWeight     = 2.0
	dailyStaleness = 0.002
	maxStaleness   = 0.08
	weekMillis     = 7 * clock.DayMillis
	monthMillis    = 30 * clock.DayMillis
)

// Graph is the topic relationship graph backed by the store.
type Graph struct {
	db    *store.DB
	cfg   config.GraphConfig
	clock clock.Clock
	log   *logger.Logger
	locks *keylock.Striped
}

func New(db *store.DB, cfg config.GraphConfig, clk clock.Clock, log *logger.Logger) *Graph {
	if clk == nil {
		clk = clock.System()
	}
	return &Graph{
		db:    db,
		cfg:   cfg,
		clock: clk,
		log:   logger.OrNop(log).With("component", "graph"),
		locks: keylock.New(cfg.LockStripes),
	}
}

// Canonical orders a topic pair so Topic1 < Topic2.
func Canonical(a, b string) (string, string) {
	return store.CanonicalPair(a, b)
}

// Reinforce strengthens every unordered pair in topics once for the given
// interaction. Replaying an interaction id changes nothing. It returns the
// number of pairs that were actually strengthened.
func (g *Graph) Reinforce(ctx context.Context, interactionID, userID string, topics []string, at int64) (int, error) {
	uniq := dedupe(topics)
	if len(uniq) < 2 {
		return 0, nil
	}

	applied := 0
	for i := 0; i < len(uniq); i++ {
		for j := i + 1; j < len(uniq); j++ {
			t1, t2 := Canonical(uniq[i], uniq[j])
			err := g.locks.Do(t1+"\x00"+t2, func() error {
				ok, rel, err := g.db.ReinforcePair(ctx, interactionID, userID, t1, t2, at, g.nextWeight)
				if err != nil {
					return err
				}
				if ok {
					applied++
					g.log.Debug("relationship reinforced", "topic1", t1, "topic2", t2, "weight", rel.Weight, "co_occurrences", rel.CoOccurrences)
				}
				return nil
			})
			if err != nil {
				return applied, fmt.Errorf("reinforce %s/%s: %w", t1, t2, err)
			}
		}
	}
	return applied, nil
}

// nextWeight applies one co-occurrence. In log mode the increment is
// Scale × (ln(1+n) − ln(n)) so that, without decay, weight tracks
// ln(1 + co-occurrences) × Scale.
func (g *Graph) nextWeight(r store.Relationship) float64 {
	var w float64
	switch g.cfg.Increment {
	case "linear":
		w = r.Weight + 1
	default:
		n := float64(r.CoOccurrences)
		if n < 1 {
			n = 1
		}
		w = r.Weight + g.cfg.Scale*(math.Log1p(n)-math.Log(n))
	}
	return math.Min(w, g.cfg.MaxWeight)
}

// Find returns the relationship between a and b in either order, or nil.
func (g *Graph) Find(ctx context.Context, a, b string) (*store.Relationship, error) {
	return g.db.GetRelationship(ctx, a, b)
}

// Related returns the 1-hop neighbours of topic, strongest first. A
// non-positive limit falls back to NeighborLimit.
func (g *Graph) Related(ctx context.Context, topic string, limit int) ([]store.Relationship, error) {
	if limit <= 0 {
		limit = g.cfg.NeighborLimit
	}
	return g.db.Neighbors(ctx, topic, limit)
}

// MaintenanceResult summarizes one relationship decay pass.
type MaintenanceResult struct {
	Decayed int `json:"decayed"`
	Pruned  int `json:"pruned"`
}

// Decay runs one relationship maintenance cycle: every weight is reduced
// and relationships falling below MinWeight are removed.
func (g *Graph) Decay(ctx context.Context) (MaintenanceResult, error) {
	var res MaintenanceResult
	var err error
	if g.cfg.ActivityAware {
		res.Decayed, err = g.decayByActivity(ctx)
	} else {
		res.Decayed, err = g.db.ScaleRelationships(ctx, g.cfg.DecayFactor)
	}
	if err != nil {
		return res, err
	}

	res.Pruned, err = g.db.PruneRelationships(ctx, g.cfg.MinWeight)
	if err != nil {
		return res, err
	}
	metrics.AddPruned(res.Pruned)
	g.log.Info("relationship decay", "decayed", res.Decayed, "pruned", res.Pruned, "activity_aware", g.cfg.ActivityAware)
	return res, nil
}

// decayByActivity computes a factor per pair from a snapshot and applies it
// to the stored weight in place, so a reinforcement committed after the
// snapshot is scaled rather than overwritten.
func (g *Graph) decayByActivity(ctx context.Context) (int, error) {
	now := g.clock.Now().UnixMilli()
	rels, err := g.db.AllRelationships(ctx)
	if err != nil {
		return 0, err
	}
	activity, err := g.db.RelationshipActivity(ctx, now-weekMillis, now-monthMillis)
	if err != nil {
		return 0, err
	}

	factors := make(map[store.PairKey]float64, len(rels))
	for _, r := range rels {
		k := store.PairKey{Topic1: r.Topic1, Topic2: r.Topic2}
		factors[k] = g.ActivityFactor(activity[k], clock.DaysBetween(r.UpdatedAt, now))
	}
	return g.db.ScaleRelationshipWeights(ctx, factors)
}

// ActivityFactor is the per-cycle decay factor for a relationship with the
// given recent activity that was last reinforced daysSinceUpdate ago.
// Busy, multi-user pairs keep close to HealthyDecayFactor; idle or
// single-user pairs fall towards DecayFactor.
func (g *Graph) ActivityFactor(a store.PairActivity, daysSinceUpdate float64) float64 {
	score := float64(a.Events7d)*weekWeight + float64(a.Events30d)*monthWeight + float64(a.UniqueUsers)*userWeight
	health := 1.0
	if g.cfg.Baseline > 0 {
		health = math.Min(1, score/g.cfg.Baseline)
	}
	factor := g.cfg.DecayFactor + (g.cfg.HealthyDecayFactor-g.cfg.DecayFactor)*health
	return factor * (1 - math.Min(daysSinceUpdate*dailyStaleness, maxStaleness))
}

// Diffuse spreads per-topic deltas to 1-hop neighbours outside the resolved
// set. Each neighbour receives
//
//	BaseBoost × |delta| × (weight / MaxWeight) × diffusionFactor
//
// signed like the source delta. Resolved topics are visited in order and
// the first relationship reaching a target wins.
func (g *Graph) Diffuse(ctx context.Context, resolved []string, deltas map[string]float64, diffusionFactor float64) (map[string]float64, error) {
	inSet := make(map[string]struct{}, len(resolved))
	for _, t := range resolved {
		inSet[t] = struct{}{}
	}

	boosts := make(map[string]float64)
	for _, topic := range resolved {
		delta := deltas[topic]
		if delta == 0 || math.IsNaN(delta) {
			continue
		}
		neighbors, err := g.db.Neighbors(ctx, topic, g.cfg.NeighborLimit)
		if err != nil {
			return nil, fmt.Errorf("diffuse from %s: %w", topic, err)
		}
		for _, rel := range neighbors {
			target := rel.Other(topic)
			if _, ok := inSet[target]; ok {
				continue
			}
			if _, done := boosts[target]; done {
				continue
			}
			boost := g.cfg.BaseBoost * math.Abs(delta) * (rel.Weight / g.cfg.MaxWeight) * diffusionFactor
			boosts[target] = math.Copysign(boost, delta)
		}
	}
	return boosts, nil
}

func dedupe(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
