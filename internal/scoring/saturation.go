package scoring

import (
	"math"

	"github.com/lazypower/interest/internal/config"
)

// band is an upper bound on the current score's position in the range and
// the share of a delta that still applies there.
type band struct {
	upTo   float64
	effect float64
}

var saturationBands = []band{
	{0.1, 1.0},
	{0.3, 0.8},
	{0.6, 0.6},
	{0.9, 0.3},
	{1.0, 0.1},
}

// Saturator keeps scores inside [min, max] with diminishing returns near the
// ceiling.
type Saturator struct {
	min, max  float64
	mode      string
	steepness float64
}

func NewSaturator(scoring config.ScoringConfig, cfg config.SaturationConfig) *Saturator {
	k := cfg.Steepness
	if k <= 0 {
		k = 1
	}
	return &Saturator{
		min:       scoring.MinScore,
		max:       scoring.MaxScore,
		mode:      cfg.Mode,
		steepness: k,
	}
}

// Clamp forces v into [min, max]; non-finite values become min.
func (s *Saturator) Clamp(v float64) float64 {
	v = finite(v, s.min)
	return math.Max(s.min, math.Min(s.max, v))
}

// Apply adds delta to current with saturation. For a fixed current score the
// result is non-decreasing in delta and always inside [min, max].
func (s *Saturator) Apply(current, delta float64) float64 {
	current = s.Clamp(current)
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return s.min
	}
	span := s.max - s.min
	if span <= 0 {
		return s.min
	}
	pos := (current - s.min) / span

	if s.mode == "tanh" {
		// Shift in the inverse-tanh domain so repeated passes compose.
		pos = math.Min(pos, 1-1e-9)
		u := math.Atanh(pos) + delta*s.steepness/span
		return s.Clamp(s.min + span*math.Tanh(u))
	}

	effect := saturationBands[len(saturationBands)-1].effect
	for _, b := range saturationBands {
		if pos <= b.upTo {
			effect = b.effect
			break
		}
	}
	return s.Clamp(current + delta*effect)
}
