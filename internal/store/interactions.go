package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lazypower/interest/internal/scoring"
)

// Interaction is one recorded engagement event.
type Interaction struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	ContentID string                  `json:"content_id"`
	Discovery scoring.Discovery       `json:"discovery"`
	Type      scoring.InteractionType `json:"type"`
	Timestamp int64                   `json:"timestamp"`
	BaseScore float64                 `json:"base_score"`
	Topics    []string                `json:"topics,omitempty"`
}

// HasInteraction reports whether an interaction id is already in the log.
func (db *DB) HasInteraction(ctx context.Context, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has interaction %s: %w", id, err)
	}
	return n > 0, nil
}

// AppendInteraction adds an interaction and its topics to the log. Appending
// an id twice is a no-op.
func (db *DB) AppendInteraction(ctx context.Context, in Interaction) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return appendInteraction(ctx, tx, in, db.now())
	})
}

func appendInteraction(ctx context.Context, tx *sql.Tx, in Interaction, recordedAt int64) error {
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO interactions
			(id, user_id, content_id, discovery, interaction_type, base_score, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.UserID, in.ContentID, string(in.Discovery), string(in.Type), in.BaseScore, in.Timestamp, recordedAt)
	if err != nil {
		return fmt.Errorf("append interaction %s: %w", in.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for _, topic := range in.Topics {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO interaction_topics (interaction_id, user_id, topic, base_score, occurred_at)
			VALUES (?, ?, ?, ?, ?)
		`, in.ID, in.UserID, topic, in.BaseScore, in.Timestamp); err != nil {
			return fmt.Errorf("append interaction topic %s/%s: %w", in.ID, topic, err)
		}
	}
	return nil
}

// InteractionsBetween returns a user's interactions with from <= timestamp <= to,
// oldest first. Topics are not loaded.
func (db *DB) InteractionsBetween(ctx context.Context, userID string, from, to int64) ([]Interaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, content_id, discovery, interaction_type, base_score, occurred_at
		FROM interactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at ASC, id ASC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("interactions between: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var disc, typ string
		if err := rows.Scan(&in.ID, &in.UserID, &in.ContentID, &disc, &typ, &in.BaseScore, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Discovery = scoring.Discovery(disc)
		in.Type = scoring.InteractionType(typ)
		out = append(out, in)
	}
	return out, rows.Err()
}

// TopicInteractionsBetween returns a user's interactions touching topic in
// [from, to], newest first, with only ID, UserID, Timestamp, BaseScore and
// Topics populated.
func (db *DB) TopicInteractionsBetween(ctx context.Context, userID, topic string, from, to int64) ([]Interaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT interaction_id, base_score, occurred_at
		FROM interaction_topics
		WHERE user_id = ? AND topic = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC, interaction_id DESC
	`, userID, topic, from, to)
	if err != nil {
		return nil, fmt.Errorf("topic interactions between: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		in := Interaction{UserID: userID, Topics: []string{topic}}
		if err := rows.Scan(&in.ID, &in.BaseScore, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan topic interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
