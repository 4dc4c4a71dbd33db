package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Relationship is the symmetric bond between two topics. Topic1 < Topic2.
type Relationship struct {
	Topic1        string  `json:"topic1"`
	Topic2        string  `json:"topic2"`
	Weight        float64 `json:"weight"`
	CoOccurrences int64   `json:"co_occurrences"`
	UpdatedAt     int64   `json:"updated_at"`
}

// Other returns the topic on the opposite end from topic.
func (r Relationship) Other(topic string) string {
	if r.Topic1 == topic {
		return r.Topic2
	}
	return r.Topic1
}

// PairActivity summarizes recent reinforcement of one relationship.
type PairActivity struct {
	Events7d     int
	Events30d    int
	UniqueUsers  int
	LastOccurred int64
}

// CanonicalPair orders two topics so the lexically smaller one comes first.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PairKey is a map key for a canonical topic pair.
type PairKey struct{ Topic1, Topic2 string }

// GetRelationship returns the relationship between a and b in either order,
// or nil if none exists.
func (db *DB) GetRelationship(ctx context.Context, a, b string) (*Relationship, error) {
	t1, t2 := CanonicalPair(a, b)
	var r Relationship
	err := db.QueryRowContext(ctx, `
		SELECT topic1, topic2, weight, co_occurrences, updated_at
		FROM topic_relationships WHERE topic1 = ? AND topic2 = ?
	`, t1, t2).Scan(&r.Topic1, &r.Topic2, &r.Weight, &r.CoOccurrences, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship %s/%s: %w", t1, t2, err)
	}
	return &r, nil
}

// Neighbors returns the 1-hop relationships of topic, strongest first.
func (db *DB) Neighbors(ctx context.Context, topic string, limit int) ([]Relationship, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT topic1, topic2, weight, co_occurrences, updated_at
		FROM topic_relationships
		WHERE topic1 = ? OR topic2 = ?
		ORDER BY weight DESC, topic1 ASC, topic2 ASC
		LIMIT ?
	`, topic, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("neighbors %s: %w", topic, err)
	}
	return scanRelationships(rows)
}

// AllRelationships returns every stored relationship.
func (db *DB) AllRelationships(ctx context.Context) ([]Relationship, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT topic1, topic2, weight, co_occurrences, updated_at
		FROM topic_relationships ORDER BY topic1, topic2
	`)
	if err != nil {
		return nil, fmt.Errorf("all relationships: %w", err)
	}
	return scanRelationships(rows)
}

func scanRelationships(rows *sql.Rows) ([]Relationship, error) {
	defer rows.Close()
	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Topic1, &r.Topic2, &r.Weight, &r.CoOccurrences, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReinforcePair records one co-occurrence of a and b caused by an
// interaction. The event is keyed by (interactionID, pair), so replaying the
// same interaction is a no-op and returns applied=false. next receives the
// relationship with CoOccurrences already incremented (Weight is the stored
// weight, zero for a new pair) and returns the new weight.
func (db *DB) ReinforcePair(ctx context.Context, interactionID, userID, a, b string, at int64, next func(Relationship) float64) (applied bool, rel Relationship, err error) {
	t1, t2 := CanonicalPair(a, b)
	if t1 == t2 {
		return false, Relationship{}, fmt.Errorf("reinforce pair: topics must differ (%q)", t1)
	}
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		applied, rel = false, Relationship{}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relationship_events (interaction_id, topic1, topic2, user_id, occurred_at)
			VALUES (?, ?, ?, ?, ?)
		`, interactionID, t1, t2, userID, at)
		if err != nil {
			return fmt.Errorf("record relationship event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		rel = Relationship{Topic1: t1, Topic2: t2}
		err = tx.QueryRowContext(ctx, `
			SELECT weight, co_occurrences, updated_at FROM topic_relationships WHERE topic1 = ? AND topic2 = ?
		`, t1, t2).Scan(&rel.Weight, &rel.CoOccurrences, &rel.UpdatedAt)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read relationship %s/%s: %w", t1, t2, err)
		}
		rel.CoOccurrences++
		rel.Weight = next(rel)
		if rel.Weight < 0 {
			rel.Weight = 0
		}
		if at > rel.UpdatedAt {
			rel.UpdatedAt = at
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO topic_relationships (topic1, topic2, weight, co_occurrences, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(topic1, topic2) DO UPDATE SET
				weight = excluded.weight,
				co_occurrences = excluded.co_occurrences,
				updated_at = excluded.updated_at
		`, t1, t2, rel.Weight, rel.CoOccurrences, rel.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert relationship %s/%s: %w", t1, t2, err)
		}
		applied = true
		return nil
	})
	return applied, rel, err
}

// ScaleRelationships multiplies every weight by factor.
func (db *DB) ScaleRelationships(ctx context.Context, factor float64) (int, error) {
	res, err := db.ExecContext(ctx, "UPDATE topic_relationships SET weight = weight * ?", factor)
	if err != nil {
		return 0, fmt.Errorf("scale relationships: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ScaleRelationshipWeights multiplies each listed pair's current weight by
// its factor in one transaction. Scaling the stored value in place keeps
// reinforcements that commit while the factors are being computed.
func (db *DB) ScaleRelationshipWeights(ctx context.Context, factors map[PairKey]float64) (int, error) {
	if len(factors) == 0 {
		return 0, nil
	}
	var scaled int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		scaled = 0
		for k, f := range factors {
			res, err := tx.ExecContext(ctx,
				"UPDATE topic_relationships SET weight = MAX(0, weight * ?) WHERE topic1 = ? AND topic2 = ?",
				f, k.Topic1, k.Topic2,
			)
			if err != nil {
				return fmt.Errorf("scale relationship %s/%s: %w", k.Topic1, k.Topic2, err)
			}
			n, _ := res.RowsAffected()
			scaled += int(n)
		}
		return nil
	})
	return scaled, err
}

// PruneRelationships deletes relationships weighing less than minWeight.
func (db *DB) PruneRelationships(ctx context.Context, minWeight float64) (int, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM topic_relationships WHERE weight < ?", minWeight)
	if err != nil {
		return 0, fmt.Errorf("prune relationships: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RelationshipActivity aggregates relationship events since since30 per
// pair. Events7d counts those at or after since7.
func (db *DB) RelationshipActivity(ctx context.Context, since7, since30 int64) (map[PairKey]PairActivity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT topic1, topic2,
		       SUM(CASE WHEN occurred_at >= ? THEN 1 ELSE 0 END),
		       COUNT(*),
		       COUNT(DISTINCT user_id),
		       MAX(occurred_at)
		FROM relationship_events
		WHERE occurred_at >= ?
		GROUP BY topic1, topic2
	`, since7, since30)
	if err != nil {
		return nil, fmt.Errorf("relationship activity: %w", err)
	}
	defer rows.Close()

	out := make(map[PairKey]PairActivity)
	for rows.Next() {
		var k PairKey
		var a PairActivity
		if err := rows.Scan(&k.Topic1, &k.Topic2, &a.Events7d, &a.Events30d, &a.UniqueUsers, &a.LastOccurred); err != nil {
			return nil, fmt.Errorf("scan relationship activity: %w", err)
		}
		out[k] = a
	}
	return out, rows.Err()
}
