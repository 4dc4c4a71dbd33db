package scoring

import (
	"math"

	"github.com/lazypower/interest/internal/config"
)

// Momentum boosts a topic when the user keeps interacting with it in the
// same direction.
type Momentum struct {
	cfg config.MomentumConfig
}

func NewMomentum(cfg config.MomentumConfig) Momentum {
	return Momentum{cfg: cfg}
}

// Enabled reports whether momentum is switched on.
func (m Momentum) Enabled() bool { return m.cfg.Enabled }

// WindowDays is how far back the streak is looked up.
func (m Momentum) WindowDays() int { return m.cfg.WindowDays }

// Multiplier returns the boost for a new interaction whose raw score has the
// sign of current, given the raw scores of recent interactions on the same
// topic, newest first. Below MinStreak matching interactions it is 1.
func (m Momentum) Multiplier(recent []float64, current float64) float64 {
	if !m.cfg.Enabled || current == 0 {
		return 1
	}
	streak := 0
	for _, r := range recent {
		if r == 0 || (r > 0) != (current > 0) {
			break
		}
		streak++
	}
	if streak < m.cfg.MinStreak {
		return 1
	}
	if m.cfg.MaxStreak > 0 && streak > m.cfg.MaxStreak {
		streak = m.cfg.MaxStreak
	}
	boost := 1 + m.cfg.LogBoost*math.Log(float64(2+streak-m.cfg.MinStreak))
	return math.Min(boost, m.cfg.MaxMomentum)
}
