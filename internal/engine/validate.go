package engine

import (
	"strings"
	"unicode"

	"github.com/lazypower/interest/internal/scoring"
)

// Identifier limits.
const (
	maxIDChars = 256
)

// validID rejects empty, oversized and control-character identifiers.
func validID(field, id string) *ValidationError {
	if strings.TrimSpace(id) == "" {
		return invalid(field, "required")
	}
	if len(id) > maxIDChars {
		return invalid(field, "longer than %d bytes", maxIDChars)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return invalid(field, "contains control characters")
	}
	return nil
}

// validated is an Interaction whose enums have been parsed.
type validated struct {
	Interaction
	discovery scoring.Discovery
	kind      scoring.InteractionType
}

// validate checks in against nowMs. The interaction id may be empty; one is
// assigned later.
func validate(in Interaction, nowMs int64) (validated, error) {
	v := validated{Interaction: in}
	if err := validID("user_id", in.UserID); err != nil {
		return v, err
	}
	if err := validID("content_id", in.ContentID); err != nil {
		return v, err
	}
	if in.ID != "" {
		if err := validID("id", in.ID); err != nil {
			return v, err
		}
	}

	d, err := scoring.ParseDiscovery(in.Discovery)
	if err != nil {
		return v, invalid("discovery", "%v", err)
	}
	it, err := scoring.ParseInteractionType(in.Type)
	if err != nil {
		return v, invalid("type", "%v", err)
	}
	v.discovery, v.kind = d, it

	if in.Timestamp <= 0 {
		return v, invalid("timestamp", "required")
	}
	if in.Timestamp > nowMs {
		return v, invalid("timestamp", "%d is in the future", in.Timestamp)
	}
	return v, nil
}
