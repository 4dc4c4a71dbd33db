package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Content is a content item and its memoized topic set.
type Content struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Topics           []string `json:"topics,omitempty"`
	CreatedAt        int64    `json:"created_at"`
	TopicsResolvedAt *int64   `json:"topics_resolved_at,omitempty"`
}

// HasTopics reports whether the topic set has been resolved.
func (c *Content) HasTopics() bool {
	return c.TopicsResolvedAt != nil && len(c.Topics) > 0
}

// PutContent inserts a content item or updates its text. Topics supplied on
// c are stored only if the content has no topics yet.
func (db *DB) PutContent(ctx context.Context, c Content) error {
	now := db.now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO contents (id, text, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text
	`, c.ID, c.Text, now)
	if err != nil {
		return fmt.Errorf("put content %s: %w", c.ID, err)
	}
	if len(c.Topics) > 0 {
		if _, err := db.SetContentTopics(ctx, c.ID, c.Topics); err != nil {
			return err
		}
	}
	return nil
}

// GetContent returns the content with the given id, or nil if absent.
func (db *DB) GetContent(ctx context.Context, id string) (*Content, error) {
	var c Content
	var resolved sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT id, text, created_at, topics_resolved_at FROM contents WHERE id = ?
	`, id).Scan(&c.ID, &c.Text, &c.CreatedAt, &resolved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content %s: %w", id, err)
	}
	if resolved.Valid {
		v := resolved.Int64
		c.TopicsResolvedAt = &v
		topics, err := db.contentTopics(ctx, id)
		if err != nil {
			return nil, err
		}
		c.Topics = topics
	}
	return &c, nil
}

func (db *DB) contentTopics(ctx context.Context, id string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT topic FROM content_topics WHERE content_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("content topics %s: %w", id, err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan content topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// SetContentTopics memoizes the topic set of a content item. It is a no-op
// returning false when topics were already stored; topic sets never change
// once written.
func (db *DB) SetContentTopics(ctx context.Context, id string, topics []string) (bool, error) {
	stored := false
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stored = false
		res, err := tx.ExecContext(ctx, `
			UPDATE contents SET topics_resolved_at = ?
			WHERE id = ? AND topics_resolved_at IS NULL
		`, db.now(), id)
		if err != nil {
			return fmt.Errorf("mark content topics %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil
		}
		for i, t := range topics {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO content_topics (content_id, topic, position) VALUES (?, ?, ?)
			`, id, t, i); err != nil {
				return fmt.Errorf("insert content topic %s/%s: %w", id, t, err)
			}
		}
		stored = true
		return nil
	})
	return stored, err
}

// KnownTopics returns up to limit topics already assigned to content, most
// used first. It seeds topic extraction so new content reuses the vocabulary.
func (db *DB) KnownTopics(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.QueryContext(ctx, `
		SELECT topic FROM content_topics
		GROUP BY topic
		ORDER BY COUNT(*) DESC, topic ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("known topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
