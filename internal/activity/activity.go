// Package activity classifies how active a user is from their interaction
// log. The resulting level scales how strongly a single interaction moves
// that user's scores and how far it diffuses across related topics.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lazypower/interest/internal/clock"
	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/store"
)

// Level is a coarse activity band, ordered from least to most active.
type Level int

const (
	NoActivity Level = iota
	Low
	LowMid
	Mid
	MidHigh
	High
	Nolifer
)

var levelNames = [...]string{
	"NO_ACTIVITY",
	"LOW_ACTIVITY",
	"LOW_MID_ACTIVITY",
	"MID_ACTIVITY",
	"MID_HIGH_ACTIVITY",
	"HIGH_ACTIVITY",
	"NOLIFER_ACTIVITY",
}

// Levels lists every level in ascending order.
var Levels = []Level{NoActivity, Low, LowMid, Mid, MidHigh, High, Nolifer}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// HorizonStats is the activity observed within one lookback window.
type HorizonStats struct {
	Days             int     `json:"days"`
	Total            int     `json:"total"`
	DailyAverage     float64 `json:"daily_average"`
	UniqueActiveDays int     `json:"unique_active_days"`
	Weighted         float64 `json:"weighted"`
}

// Profile is the derived activity picture of one user. It is never stored.
type Profile struct {
	UserID              string         `json:"user_id"`
	Horizons            []HorizonStats `json:"horizons"`
	Score               float64        `json:"score"`
	Level               Level          `json:"level"`
	InfluenceMultiplier float64        `json:"influence_multiplier"`
	DiffusionFactor     float64        `json:"diffusion_factor"`
}

// InteractionLog is the read side of the interaction log the classifier needs.
type InteractionLog interface {
	InteractionsBetween(ctx context.Context, userID string, from, to int64) ([]store.Interaction, error)
}

// Classifier builds activity profiles.
type Classifier struct {
	cfg   config.ActivityConfig
	log   InteractionLog
	clock clock.Clock
}

func NewClassifier(cfg config.ActivityConfig, log InteractionLog, clk clock.Clock) *Classifier {
	if clk == nil {
		clk = clock.System()
	}
	horizons := append([]config.Horizon(nil), cfg.Horizons...)
	sort.Slice(horizons, func(i, j int) bool { return horizons[i].Days < horizons[j].Days })
	cfg.Horizons = horizons
	return &Classifier{cfg: cfg, log: log, clock: clk}
}

// Profile computes the activity profile of userID as of the clock's now.
func (c *Classifier) Profile(ctx context.Context, userID string) (Profile, error) {
	now := c.clock.Now().UnixMilli()
	var longest int
	for _, h := range c.cfg.Horizons {
		if h.Days > longest {
			longest = h.Days
		}
	}

	events, err := c.log.InteractionsBetween(ctx, userID, now-int64(longest)*clock.DayMillis, now)
	if err != nil {
		return Profile{}, fmt.Errorf("activity profile %s: %w", userID, err)
	}
	return c.Classify(userID, events, now), nil
}

// Classify builds a profile from an already loaded slice of interactions.
func (c *Classifier) Classify(userID string, events []store.Interaction, nowMs int64) Profile {
	p := Profile{UserID: userID}
	var sum, weights float64
	seen := false
	for _, h := range c.cfg.Horizons {
		hs := c.horizon(h.Days, events, nowMs)
		p.Horizons = append(p.Horizons, hs)
		if hs.Total > 0 {
			seen = true
		}
		sum += h.Weight * hs.Weighted * (30 / float64(h.Days))
		weights += h.Weight
	}
	if weights > 0 {
		p.Score = sum / weights
	}
	p.Level = c.level(p.Score, seen)
	p.InfluenceMultiplier = c.InfluenceMultiplier(p.Level)
	p.DiffusionFactor = c.DiffusionFactor(p.Level)
	return p
}

func (c *Classifier) horizon(days int, events []store.Interaction, nowMs int64) HorizonStats {
	hs := HorizonStats{Days: days}
	from := nowMs - int64(days)*clock.DayMillis
	active := make(map[string]struct{})
	for _, e := range events {
		if e.Timestamp < from || e.Timestamp > nowMs {
			continue
		}
		hs.Total++
		hs.Weighted += c.cfg.Weights[string(e.Type)]
		active[time.UnixMilli(e.Timestamp).UTC().Format(time.DateOnly)] = struct{}{}
	}
	hs.UniqueActiveDays = len(active)
	hs.DailyAverage = float64(hs.Total) / math.Max(1, float64(days))
	return hs
}

func (c *Classifier) level(score float64, seen bool) Level {
	if !seen {
		return NoActivity
	}
	lvl := Low
	for i, threshold := range c.cfg.Thresholds {
		if i < len(Levels) && score >= threshold && Levels[i] > lvl {
			lvl = Levels[i]
		}
	}
	return lvl
}

// InfluenceMultiplier scales a base score for a user at level l. It falls
// linearly from MaxMultiplier at NO_ACTIVITY to MinMultiplier at the top level.
func (c *Classifier) InfluenceMultiplier(l Level) float64 {
	top := float64(len(Levels) - 1)
	return c.cfg.MaxMultiplier - (c.cfg.MaxMultiplier-c.cfg.MinMultiplier)*float64(l)/top
}

// DiffusionFactor is how strongly a user at level l spreads interest to
// related topics.
func (c *Classifier) DiffusionFactor(l Level) float64 {
	if int(l) < len(c.cfg.DiffusionFactors) {
		return c.cfg.DiffusionFactors[l]
	}
	return 1
}
