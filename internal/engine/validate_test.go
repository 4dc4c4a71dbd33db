package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	const now = int64(1_000_000)
	good := Interaction{
		UserID: "u1", ContentID: "c1",
		Discovery: "search", Type: "Comment", Timestamp: now,
	}

	v, err := validate(good, now)
	if err != nil {
		t.Fatalf("valid interaction rejected: %v", err)
	}
	if v.discovery != "SEARCH" || v.kind != "COMMENT" {
		t.Errorf("parsed = %s/%s, want SEARCH/COMMENT", v.discovery, v.kind)
	}

	tests := []struct {
		name  string
		mut   func(*Interaction)
		field string
	}{
		{"missing user", func(in *Interaction) { in.UserID = "  " }, "user_id"},
		{"missing content", func(in *Interaction) { in.ContentID = "" }, "content_id"},
		{"control chars", func(in *Interaction) { in.UserID = "u\x001" }, "user_id"},
		{"long id", func(in *Interaction) { in.ID = strings.Repeat("x", 300) }, "id"},
		{"unknown discovery", func(in *Interaction) { in.Discovery = "FEED" }, "discovery"},
		{"unknown type", func(in *Interaction) { in.Type = "POKE" }, "type"},
		{"missing timestamp", func(in *Interaction) { in.Timestamp = 0 }, "timestamp"},
		{"future timestamp", func(in *Interaction) { in.Timestamp = now + 1 }, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := good
			tt.mut(&in)
			_, err := validate(in, now)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
			if !IsRejection(err) {
				t.Error("validation error should count as a rejection")
			}
		})
	}
}

func TestIsRejection(t *testing.T) {
	if !IsRejection(ErrContentNotFound) {
		t.Error("ErrContentNotFound should be a rejection")
	}
	if IsRejection(errors.New("disk full")) {
		t.Error("plain errors are not rejections")
	}
}
