package scoring

import (
	"math"

	"github.com/lazypower/interest/internal/config"
)

// BaseScorer maps (discovery, interaction type) to a signed raw score.
type BaseScorer struct {
	discovery map[Discovery]float64
	weights   map[InteractionType]float64
	clamp     float64
}

// NewBaseScorer builds a scorer from the configured tables. Unknown keys in
// the tables are ignored.
func NewBaseScorer(cfg config.ScoringConfig) *BaseScorer {
	b := &BaseScorer{
		discovery: make(map[Discovery]float64, len(cfg.Discovery)),
		weights:   make(map[InteractionType]float64, len(cfg.Interaction)),
		clamp:     math.Abs(cfg.RawClamp),
	}
	for k, v := range cfg.Discovery {
		if d, err := ParseDiscovery(k); err == nil {
			b.discovery[d] = v
		}
	}
	for k, v := range cfg.Interaction {
		if it, err := ParseInteractionType(k); err == nil {
			b.weights[it] = v
		}
	}
	return b
}

// Score returns discoveryBase × interactionWeight clamped to [-clamp, clamp].
func (b *BaseScorer) Score(d Discovery, t InteractionType) float64 {
	raw := finite(b.discovery[d]*b.weights[t], 0)
	if b.clamp > 0 {
		raw = math.Max(-b.clamp, math.Min(b.clamp, raw))
	}
	return raw
}
