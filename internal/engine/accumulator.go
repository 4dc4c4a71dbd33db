package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/interest/internal/activity"
	"github.com/lazypower/interest/internal/clock"
	"github.com/lazypower/interest/internal/metrics"
	"github.com/lazypower/interest/internal/scoring"
	"github.com/lazypower/interest/internal/store"
)

// State is a step of the accumulator pass.
type State string

const (
	Received           State = "RECEIVED"
	Decayed            State = "DECAYED"
	TopicsResolved     State = "TOPICS_RESOLVED"
	BaseScored         State = "BASE_SCORED"
	ActivityNormalized State = "ACTIVITY_NORMALIZED"
	Diffused           State = "DIFFUSED"
	Saturated          State = "SATURATED"
	Persisted          State = "PERSISTED"
	Rejected           State = "REJECTED"
)

var errDuplicate = errors.New("duplicate interaction")

// Interaction is an incoming engagement event. Discovery and Type are
// parsed case-insensitively; Timestamp is epoch milliseconds. An empty ID is
// replaced by a generated one.
type Interaction struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	Discovery string `json:"discovery"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Result describes one accumulator pass.
type Result struct {
	InteractionID string               `json:"interaction_id"`
	UserID        string               `json:"user_id"`
	State         State                `json:"state"`
	Trail         []State              `json:"trail"`
	Topics        []string             `json:"topics,omitempty"`
	Fallback      bool                 `json:"fallback,omitempty"`
	Duplicate     bool                 `json:"duplicate,omitempty"`
	BaseScore     float64              `json:"base_score"`
	Deltas        map[string]float64   `json:"deltas,omitempty"`
	Diffused      map[string]float64   `json:"diffused,omitempty"`
	Scores        []scoring.TopicScore `json:"scores,omitempty"`
	Removed       []string             `json:"removed,omitempty"`
	Activity      *activity.Profile    `json:"activity,omitempty"`
	Error         string               `json:"error,omitempty"`
}

func (r *Result) advance(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

func (r *Result) reject(err error) {
	r.advance(Rejected)
	r.Error = err.Error()
}

// Record runs one interaction through the accumulator. Rejections
// (ValidationError, ErrContentNotFound) and infrastructure failures are
// returned as errors together with a Result in state REJECTED; no score is
// mutated in either case.
func (e *Engine) Record(ctx context.Context, in Interaction) (Result, error) {
	start := time.Now()
	res := Result{InteractionID: in.ID, UserID: in.UserID}
	res.advance(Received)

	err := e.record(ctx, in, &res)
	if err != nil {
		res.reject(err)
		if IsRejection(err) {
			e.log.Info("interaction rejected", "user_id", in.UserID, "content_id", in.ContentID, "error", err)
		} else {
			e.log.Error("interaction failed", "user_id", in.UserID, "content_id", in.ContentID, "error", err)
		}
	}
	metrics.ObservePass(start, string(res.State))
	return res, err
}

func (e *Engine) record(ctx context.Context, in Interaction, res *Result) error {
	now := e.Now()
	v, err := validate(in, now)
	if err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
		res.InteractionID = v.ID
	}

	content, err := e.DB.GetContent(ctx, v.ContentID)
	if err != nil {
		return err
	}
	if content == nil {
		return fmt.Errorf("%w: %s", ErrContentNotFound, v.ContentID)
	}

	dup, err := e.DB.HasInteraction(ctx, v.ID)
	if err != nil {
		return err
	}
	if dup {
		return e.replay(ctx, v, content, res)
	}

	// Extraction may block, so it runs before the user lock is taken.
	topics, fallback := e.resolveTopics(ctx, content)

	unlock := e.users.Lock(v.UserID)
	err = e.accumulate(ctx, v, topics, fallback, now, res)
	unlock()
	if errors.Is(err, errDuplicate) {
		return e.replay(ctx, v, content, res)
	}
	if err != nil {
		return err
	}

	if _, err := e.Graph.Reinforce(ctx, v.ID, v.UserID, topics, v.Timestamp); err != nil {
		// Scores are committed; a replay of the same id completes the graph.
		e.log.Warn("relationship reinforcement failed", "interaction_id", v.ID, "error", err)
	}
	return nil
}

// replay handles an interaction id that is already in the log. Scores are
// left alone; relationship reinforcement is re-run since it is idempotent and
// may not have completed the first time.
func (e *Engine) replay(ctx context.Context, v validated, content *store.Content, res *Result) error {
	res.Duplicate = true
	res.Topics = content.Topics
	if content.HasTopics() {
		if _, err := e.Graph.Reinforce(ctx, v.ID, v.UserID, content.Topics, v.Timestamp); err != nil {
			return err
		}
	}
	res.advance(Persisted)
	e.log.Debug("duplicate interaction", "interaction_id", v.ID, "user_id", v.UserID)
	return nil
}

// accumulate is the locked part of a pass: decay, score, normalize, diffuse,
// saturate and persist.
func (e *Engine) accumulate(ctx context.Context, v validated, topics []string, fallback bool, now int64, res *Result) error {
	// Another pass for the same id may have committed while we resolved topics.
	if dup, err := e.DB.HasInteraction(ctx, v.ID); err != nil {
		return err
	} else if dup {
		return errDuplicate
	}

	stored, err := e.DB.UserScores(ctx, v.UserID)
	if err != nil {
		return err
	}
	decayed := e.decay.Decay(stored, now)
	current := make(map[string]scoring.TopicScore, len(decayed.Scores))
	for _, s := range decayed.Scores {
		current[s.Topic] = s
	}
	res.advance(Decayed)

	res.Topics = topics
	res.Fallback = fallback
	res.advance(TopicsResolved)

	base := e.base.Score(v.discovery, v.kind)
	res.BaseScore = base
	res.advance(BaseScored)

	profile, err := e.activity.Profile(ctx, v.UserID)
	if err != nil {
		return err
	}
	res.Activity = &profile
	deltas := make(map[string]float64, len(topics))
	for _, topic := range topics {
		mult := 1.0
		if e.momentum.Enabled() {
			mult, err = e.momentumFor(ctx, v.UserID, topic, base, now)
			if err != nil {
				return err
			}
		}
		deltas[topic] += base * profile.InfluenceMultiplier * mult
	}
	res.Deltas = deltas
	res.advance(ActivityNormalized)

	boosts, err := e.Graph.Diffuse(ctx, topics, deltas, profile.DiffusionFactor)
	if err != nil {
		return err
	}
	res.Diffused = boosts
	res.advance(Diffused)

	touched := make(map[string]float64, len(deltas)+len(boosts))
	for t, d := range deltas {
		touched[t] += d
	}
	for t, d := range boosts {
		touched[t] += d
	}
	upserts := make(map[string]scoring.TopicScore, len(touched)+len(decayed.Changed))
	for _, t := range decayed.Changed {
		upserts[t] = current[t]
	}
	for topic, delta := range touched {
		s, ok := current[topic]
		if !ok {
			s = scoring.TopicScore{Topic: topic}
		}
		s, changed := e.saturate(s, delta, now)
		if !changed {
			continue
		}
		current[topic] = s
		upserts[topic] = s
	}
	res.advance(Saturated)

	var removed []string
	for _, t := range decayed.Removed {
		if _, ok := upserts[t]; !ok {
			removed = append(removed, t)
		}
	}
	w := store.PassWrite{
		UserID: v.UserID,
		Interaction: &store.Interaction{
			ID:        v.ID,
			UserID:    v.UserID,
			ContentID: v.ContentID,
			Discovery: v.discovery,
			Type:      v.kind,
			Timestamp: v.Timestamp,
			BaseScore: base,
			Topics:    topics,
		},
		Upserts: sortedScores(upserts),
		Removed: removed,
	}
	if err := e.DB.CommitPass(ctx, w); err != nil {
		return err
	}
	res.Scores = w.Upserts
	res.Removed = removed
	metrics.AddDecayed("changed", len(decayed.Changed))
	metrics.AddDecayed("removed", len(removed))
	res.advance(Persisted)
	return nil
}

// saturate adds delta to the interest (positive) or disinterest (negative)
// side of s. When either value moves, s is re-anchored at now; a delta that
// saturation absorbs entirely leaves s, including UpdatedAt, untouched and
// reports changed=false.
func (e *Engine) saturate(s scoring.TopicScore, delta float64, now int64) (next scoring.TopicScore, changed bool) {
	next = s
	switch {
	case delta > 0:
		next.Interest = e.sat.Apply(s.Interest, delta)
	case delta < 0:
		next.Disinterest = e.sat.Apply(s.Disinterest, -delta)
	}
	next.Interest = e.sat.Clamp(next.Interest)
	next.Disinterest = e.sat.Clamp(next.Disinterest)
	if next.Interest == s.Interest && next.Disinterest == s.Disinterest {
		return s, false
	}
	next.AnchorInterest = next.Interest
	next.AnchorDisinterest = next.Disinterest
	next.UpdatedAt = now
	return next, true
}

func (e *Engine) momentumFor(ctx context.Context, userID, topic string, base float64, now int64) (float64, error) {
	from := now - int64(e.momentum.WindowDays())*clock.DayMillis
	recent, err := e.DB.TopicInteractionsBetween(ctx, userID, topic, from, now)
	if err != nil {
		return 1, err
	}
	raw := make([]float64, len(recent))
	for i, r := range recent {
		raw[i] = r.BaseScore
	}
	m := e.momentum.Multiplier(raw, base)
	if math.IsNaN(m) || m <= 0 {
		return 1, nil
	}
	return m, nil
}

func sortedScores(m map[string]scoring.TopicScore) []scoring.TopicScore {
	out := make([]scoring.TopicScore, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}
