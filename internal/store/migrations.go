package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "contents: content text and memoized topics",
		SQL: `
CREATE TABLE contents (
    id                 TEXT PRIMARY KEY,
    text               TEXT NOT NULL,
    created_at         INTEGER NOT NULL,
    topics_resolved_at INTEGER
);

CREATE TABLE content_topics (
    content_id TEXT NOT NULL,
    topic      TEXT NOT NULL,
    position   INTEGER NOT NULL,
    PRIMARY KEY (content_id, topic),
    FOREIGN KEY (content_id) REFERENCES contents(id) ON DELETE CASCADE
);

CREATE INDEX idx_content_topics_topic ON content_topics(topic);
`,
	},
	{
		Version:     2,
		Description: "interactions: append-only interaction log",
		SQL: `
CREATE TABLE interactions (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    content_id       TEXT NOT NULL,
    discovery        TEXT NOT NULL CHECK (discovery IN ('SEARCH', 'TRENDING', 'RECOMMENDATION')),
    interaction_type TEXT NOT NULL CHECK (interaction_type IN ('LIKE', 'DISLIKE', 'COMMENT', 'REPORT', 'VIEW', 'SHARE', 'REACTION')),
    base_score       REAL NOT NULL,
    occurred_at      INTEGER NOT NULL,
    recorded_at      INTEGER NOT NULL
);

CREATE INDEX idx_interactions_user_time ON interactions(user_id, occurred_at);

CREATE TABLE interaction_topics (
    interaction_id TEXT NOT NULL,
    user_id        TEXT NOT NULL,
    topic          TEXT NOT NULL,
    base_score     REAL NOT NULL,
    occurred_at    INTEGER NOT NULL,
    PRIMARY KEY (interaction_id, topic),
    FOREIGN KEY (interaction_id) REFERENCES interactions(id) ON DELETE CASCADE
);

CREATE INDEX idx_interaction_topics_user_topic ON interaction_topics(user_id, topic, occurred_at DESC);
`,
	},
	{
		Version:     3,
		Description: "user_topic_scores: per user, per topic affinity",
		SQL: `
CREATE TABLE user_topic_scores (
    user_id            TEXT NOT NULL,
    topic              TEXT NOT NULL,
    interest           REAL NOT NULL DEFAULT 0 CHECK (interest >= 0),
    disinterest        REAL NOT NULL DEFAULT 0 CHECK (disinterest >= 0),
    anchor_interest    REAL NOT NULL DEFAULT 0 CHECK (anchor_interest >= 0),
    anchor_disinterest REAL NOT NULL DEFAULT 0 CHECK (anchor_disinterest >= 0),
    updated_at         INTEGER NOT NULL,
    PRIMARY KEY (user_id, topic)
);
`,
	},
	{
		Version:     4,
		Description: "topic_relationships: symmetric co-occurrence graph",
		SQL: `
CREATE TABLE topic_relationships (
    topic1         TEXT NOT NULL,
    topic2         TEXT NOT NULL,
    weight         REAL NOT NULL CHECK (weight >= 0),
    co_occurrences INTEGER NOT NULL DEFAULT 0,
    updated_at     INTEGER NOT NULL,
    PRIMARY KEY (topic1, topic2),
    CHECK (topic1 < topic2)
);

CREATE INDEX idx_relationships_topic2 ON topic_relationships(topic2);

CREATE TABLE relationship_events (
    interaction_id TEXT NOT NULL,
    topic1         TEXT NOT NULL,
    topic2         TEXT NOT NULL,
    user_id        TEXT NOT NULL,
    occurred_at    INTEGER NOT NULL,
    PRIMARY KEY (interaction_id, topic1, topic2)
);

CREATE INDEX idx_relationship_events_pair ON relationship_events(topic1, topic2, occurred_at);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
