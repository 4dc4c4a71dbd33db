package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/lazypower/interest/internal/config"
)

const dayMillis = 86_400_000.0

// DecayResult is the outcome of one decay pass over a user's scores.
type DecayResult struct {
	Scores  []TopicScore // surviving scores with decayed Interest/Disinterest
	Changed []string     // topics whose current values moved
	Removed []string     // topics dropped entirely
}

// DecayStrategy reduces stored scores by elapsed time. Implementations
// compute from the anchor values, never advance UpdatedAt, are
// non-increasing in elapsed time and are the identity at zero elapsed time.
type DecayStrategy interface {
	Name() string
	Decay(scores []TopicScore, nowMs int64) DecayResult
}

// NewDecayStrategy selects a strategy by cfg.Strategy.
func NewDecayStrategy(cfg config.DecayConfig) (DecayStrategy, error) {
	switch cfg.Strategy {
	case "", "tiered":
		return Tiered{}, nil
	case "ratio":
		return RatioPreserving{cfg: cfg}, nil
	case "threshold":
		return ThresholdBased{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown decay strategy %q", cfg.Strategy)
	}
}

func elapsedDays(updatedAt, nowMs int64) float64 {
	if nowMs <= updatedAt {
		return 0
	}
	return float64(nowMs-updatedAt) / dayMillis
}

// TieredFactor is the forgetting curve of the tiered strategy:
// flat for a week, then gentle, steep and residual tiers.
func TieredFactor(d float64) float64 {
	switch {
	case d <= 7:
		return 1.0
	case d <= 28:
		return 0.90 - (d-7)/21*0.10
	case d <= 180:
		return 0.70 - (d-28)/152*0.40
	default:
		return 0.20 - math.Min((d-180)/180*0.10, 0.10)
	}
}

// Tiered applies TieredFactor with integer rounding. A topic whose interest
// and disinterest both reach zero is removed.
type Tiered struct{}

func (Tiered) Name() string { return "tiered" }

func (Tiered) Decay(scores []TopicScore, nowMs int64) DecayResult {
	var res DecayResult
	for _, s := range scores {
		f := TieredFactor(elapsedDays(s.UpdatedAt, nowMs))
		next := s
		next.Interest = tieredValue(s.AnchorInterest, f)
		next.Disinterest = tieredValue(s.AnchorDisinterest, f)
		if next.IsZero() && !(s.AnchorInterest == 0 && s.AnchorDisinterest == 0) {
			res.Removed = append(res.Removed, s.Topic)
			continue
		}
		if next.Interest != s.Interest || next.Disinterest != s.Disinterest {
			res.Changed = append(res.Changed, s.Topic)
		}
		res.Scores = append(res.Scores, next)
	}
	return res
}

// tieredValue rounds the decayed value but never rounds it above the anchor.
func tieredValue(anchor, f float64) float64 {
	if f >= 1 {
		return anchor
	}
	v := math.Max(0, math.Round(anchor*f))
	return math.Min(anchor, v)
}

// RatioPreserving decays each topic on a multi-tier half-life curve and then
// blends the result toward the user's original topic hierarchy, so ranking
// survives long inactivity. Scores never drop below Floor.
type RatioPreserving struct {
	cfg config.DecayConfig
}

func (RatioPreserving) Name() string { return "ratio" }

// HalfLifeFactor is the multi-tier half-life curve: normal rate up to
// ShortTermDays, LongTermRate up to LongTermDays, UltraLongTermRate beyond.
func (r RatioPreserving) HalfLifeFactor(d float64) float64 {
	c := r.cfg
	h := c.HalfLifeDays
	if h <= 0 {
		h = 30
	}
	if d <= c.ShortTermDays {
		return math.Pow(0.5, d/h)
	}
	f := math.Pow(0.5, c.ShortTermDays/h)
	if d <= c.LongTermDays {
		return f * math.Pow(0.5, (d-c.ShortTermDays)*c.LongTermRate/h)
	}
	f *= math.Pow(0.5, (c.LongTermDays-c.ShortTermDays)*c.LongTermRate/h)
	return f * math.Pow(0.5, (d-c.LongTermDays)*c.UltraLongTermRate/h)
}

func (r RatioPreserving) Decay(scores []TopicScore, nowMs int64) DecayResult {
	interest := make([]float64, len(scores))
	disinterest := make([]float64, len(scores))
	for i, s := range scores {
		interest[i] = s.AnchorInterest
		disinterest[i] = s.AnchorDisinterest
	}
	elapsed := make([]float64, len(scores))
	for i, s := range scores {
		elapsed[i] = elapsedDays(s.UpdatedAt, nowMs)
	}
	newInterest := r.preserve(interest, elapsed)
	newDisinterest := r.preserve(disinterest, elapsed)

	var res DecayResult
	for i, s := range scores {
		next := s
		next.Interest = newInterest[i]
		next.Disinterest = newDisinterest[i]
		if next.Interest != s.Interest || next.Disinterest != s.Disinterest {
			res.Changed = append(res.Changed, s.Topic)
		}
		res.Scores = append(res.Scores, next)
	}
	return res
}

// preserve decays one dimension (interest or disinterest) of a user's
// scores. Zero originals stay zero.
func (r RatioPreserving) preserve(original, elapsed []float64) []float64 {
	out := make([]float64, len(original))
	natural := make([]float64, len(original))
	var totalOriginal, totalNatural float64
	top := -1
	for i, o := range original {
		if o <= 0 {
			continue
		}
		natural[i] = math.Max(o*r.HalfLifeFactor(elapsed[i]), math.Min(o, r.cfg.Floor))
		totalOriginal += o
		totalNatural += natural[i]
		if top < 0 || o > original[top] {
			top = i
		}
	}
	if top < 0 {
		return out
	}

	intensity := math.Min(1, totalNatural/totalOriginal)
	if totalNatural < totalOriginal*0.1 {
		intensity = r.cfg.PreservationFactor
	}
	for i, o := range original {
		if o <= 0 {
			continue
		}
		proportional := natural[top] * (o / original[top])
		v := natural[i]*(1-intensity) + proportional*intensity
		v = math.Max(v, math.Min(o, r.cfg.Floor))
		out[i] = math.Min(finite(v, 0), o)
	}
	return out
}

// ThresholdBased scales every topic of a user by one factor derived from the
// user's inactivity, so ratios between topics are preserved exactly. The
// factor follows DailyFactor^days up to ThresholdDays, then the
// PostThreshold mode: "pause" freezes it, "slow" continues at SlowFactor,
// "continue" keeps DailyFactor.
type ThresholdBased struct {
	cfg config.DecayConfig
}

func (ThresholdBased) Name() string { return "threshold" }

// Factor returns the multiplier after d days of inactivity.
func (t ThresholdBased) Factor(d float64) float64 {
	c := t.cfg
	if d <= c.ThresholdDays {
		return math.Pow(c.DailyFactor, d)
	}
	f := math.Pow(c.DailyFactor, c.ThresholdDays)
	rest := d - c.ThresholdDays
	switch c.PostThreshold {
	case "pause":
		return f
	case "continue":
		return f * math.Pow(c.DailyFactor, rest)
	default:
		return f * math.Pow(c.SlowFactor, rest)
	}
}

func (t ThresholdBased) Decay(scores []TopicScore, nowMs int64) DecayResult {
	var res DecayResult
	if len(scores) == 0 {
		return res
	}
	var lastActive int64
	for _, s := range scores {
		if s.UpdatedAt > lastActive {
			lastActive = s.UpdatedAt
		}
	}
	factor := finite(t.Factor(elapsedDays(lastActive, nowMs)), 0)
	for _, s := range scores {
		next := s
		next.Interest = math.Min(s.AnchorInterest, s.AnchorInterest*factor)
		next.Disinterest = math.Min(s.AnchorDisinterest, s.AnchorDisinterest*factor)
		if next.Interest != s.Interest || next.Disinterest != s.Disinterest {
			res.Changed = append(res.Changed, s.Topic)
		}
		res.Scores = append(res.Scores, next)
	}
	return res
}

// SortByNet orders scores by descending net affinity, ties by topic.
func SortByNet(scores []TopicScore) {
	sort.Slice(scores, func(i, j int) bool {
		ni, nj := scores[i].Net(), scores[j].Net()
		if ni != nj {
			return ni > nj
		}
		return scores[i].Topic < scores[j].Topic
	})
}
