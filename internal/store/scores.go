package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lazypower/interest/internal/scoring"
)

// PassWrite is everything one accumulator pass persists for a user.
type PassWrite struct {
	UserID      string
	Interaction *Interaction
	Upserts     []scoring.TopicScore
	Removed     []string
}

// UserScores returns all stored topic scores of a user ordered by topic.
func (db *DB) UserScores(ctx context.Context, userID string) ([]scoring.TopicScore, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT topic, interest, disinterest, anchor_interest, anchor_disinterest, updated_at
		FROM user_topic_scores
		WHERE user_id = ?
		ORDER BY topic
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("user scores %s: %w", userID, err)
	}
	defer rows.Close()

	var out []scoring.TopicScore
	for rows.Next() {
		var s scoring.TopicScore
		if err := rows.Scan(&s.Topic, &s.Interest, &s.Disinterest, &s.AnchorInterest, &s.AnchorDisinterest, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CommitPass writes a pass atomically: the interaction log entry (if any),
// score upserts and removals.
func (db *DB) CommitPass(ctx context.Context, w PassWrite) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if w.Interaction != nil {
			if err := appendInteraction(ctx, tx, *w.Interaction, db.now()); err != nil {
				return err
			}
		}
		return writeScores(ctx, tx, w.UserID, w.Upserts, w.Removed)
	})
}

// SaveScores upserts and removes scores for a user without touching the log.
func (db *DB) SaveScores(ctx context.Context, userID string, upserts []scoring.TopicScore, removed []string) error {
	if len(upserts) == 0 && len(removed) == 0 {
		return nil
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return writeScores(ctx, tx, userID, upserts, removed)
	})
}

func writeScores(ctx context.Context, tx *sql.Tx, userID string, upserts []scoring.TopicScore, removed []string) error {
	for _, topic := range removed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM user_topic_scores WHERE user_id = ? AND topic = ?", userID, topic,
		); err != nil {
			return fmt.Errorf("remove score %s/%s: %w", userID, topic, err)
		}
	}
	for _, s := range upserts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_topic_scores
				(user_id, topic, interest, disinterest, anchor_interest, anchor_disinterest, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, topic) DO UPDATE SET
				interest = excluded.interest,
				disinterest = excluded.disinterest,
				anchor_interest = excluded.anchor_interest,
				anchor_disinterest = excluded.anchor_disinterest,
				updated_at = excluded.updated_at
		`, userID, s.Topic, s.Interest, s.Disinterest, s.AnchorInterest, s.AnchorDisinterest, s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert score %s/%s: %w", userID, s.Topic, err)
		}
	}
	return nil
}

// UsersWithScores lists every user holding at least one topic score.
func (db *DB) UsersWithScores(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT user_id FROM user_topic_scores ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("users with scores: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
