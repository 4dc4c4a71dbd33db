// Package scoring holds the pure numeric models of the interest engine:
// the base interaction scorer, saturation, decay strategies and momentum.
// Nothing here touches storage or the clock.
package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Discovery is how a user reached a piece of content.
type Discovery string

const (
	Search         Discovery = "SEARCH"
	Trending       Discovery = "TRENDING"
	Recommendation Discovery = "RECOMMENDATION"
)

// InteractionType is what the user did with the content.
type InteractionType string

const (
	Like     InteractionType = "LIKE"
	Dislike  InteractionType = "DISLIKE"
	Comment  InteractionType = "COMMENT"
	Report   InteractionType = "REPORT"
	View     InteractionType = "VIEW"
	Share    InteractionType = "SHARE"
	Reaction InteractionType = "REACTION"
)

// Discoveries lists every discovery method.
var Discoveries = []Discovery{Search, Trending, Recommendation}

// InteractionTypes lists every interaction type.
var InteractionTypes = []InteractionType{Like, Dislike, Comment, Report, View, Share, Reaction}

// ParseDiscovery accepts a discovery name in any case.
func ParseDiscovery(s string) (Discovery, error) {
	d := Discovery(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Discoveries {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown discovery method %q", s)
}

// ParseInteractionType accepts an interaction type name in any case.
func ParseInteractionType(s string) (InteractionType, error) {
	it := InteractionType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range InteractionTypes {
		if it == known {
			return it, nil
		}
	}
	return "", fmt.Errorf("unknown interaction type %q", s)
}

// TopicScore is one user's affinity for one topic.
//
// Interest and Disinterest are the current (possibly decayed) magnitudes.
// The Anchor fields hold the values set by the last accumulation at
// UpdatedAt; decay is always computed from the anchors, so repeated decay
// passes at the same instant give the same result.
type TopicScore struct {
	Topic             string  `json:"topic"`
	Interest          float64 `json:"interest"`
	Disinterest       float64 `json:"disinterest"`
	AnchorInterest    float64 `json:"anchor_interest"`
	AnchorDisinterest float64 `json:"anchor_disinterest"`
	UpdatedAt         int64   `json:"updated_at"`
}

// Net is interest minus disinterest.
func (s TopicScore) Net() float64 {
	return s.Interest - s.Disinterest
}

// IsZero reports whether both magnitudes are zero.
func (s TopicScore) IsZero() bool {
	return s.Interest == 0 && s.Disinterest == 0
}

// finite replaces NaN and infinities with fallback.
func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
