package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/interest/internal/clock"
	"github.com/lazypower/interest/internal/scoring"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestContentTopicsMemoizedOnce(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	require.NoError(t, db.PutContent(ctx, Content{ID: "c1", Text: "a night of bebop"}))

	c, err := db.GetContent(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.HasTopics())

	stored, err := db.SetContentTopics(ctx, "c1", []string{"jazz", "music"})
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = db.SetContentTopics(ctx, "c1", []string{"cooking"})
	require.NoError(t, err)
	assert.False(t, stored)

	c, err = db.GetContent(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.HasTopics())
	assert.Equal(t, []string{"jazz", "music"}, c.Topics)
}

func TestGetContentMissing(t *testing.T) {
	db := openTest(t)
	c, err := db.GetContent(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestKnownTopicsByUse(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	require.NoError(t, db.PutContent(ctx, Content{ID: "c1", Text: "x", Topics: []string{"jazz", "blues"}}))
	require.NoError(t, db.PutContent(ctx, Content{ID: "c2", Text: "y", Topics: []string{"jazz"}}))

	topics, err := db.KnownTopics(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz", "blues"}, topics)
}

func TestInteractionLog(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	in := Interaction{
		ID: "i1", UserID: "u1", ContentID: "c1",
		Discovery: scoring.Search, Type: scoring.Like,
		Timestamp: 2000, BaseScore: 4, Topics: []string{"jazz", "blues"},
	}
	require.NoError(t, db.AppendInteraction(ctx, in))
	require.NoError(t, db.AppendInteraction(ctx, in))
	require.NoError(t, db.AppendInteraction(ctx, Interaction{
		ID: "i2", UserID: "u1", ContentID: "c1",
		Discovery: scoring.Trending, Type: scoring.View,
		Timestamp: 1000, BaseScore: 0.3, Topics: []string{"jazz"},
	}))

	ok, err := db.HasInteraction(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := db.InteractionsBetween(ctx, "u1", 0, 5000)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "i2", all[0].ID)
	assert.Equal(t, scoring.Like, all[1].Type)

	jazz, err := db.TopicInteractionsBetween(ctx, "u1", "jazz", 0, 5000)
	require.NoError(t, err)
	require.Len(t, jazz, 2)
	assert.Equal(t, "i1", jazz[0].ID, "newest first")

	blues, err := db.TopicInteractionsBetween(ctx, "u1", "blues", 0, 5000)
	require.NoError(t, err)
	assert.Len(t, blues, 1)
}

func TestCommitPassAndRemoval(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	in := &Interaction{
		ID: "i1", UserID: "u1", ContentID: "c1",
		Discovery: scoring.Search, Type: scoring.Like,
		Timestamp: 1000, BaseScore: 4, Topics: []string{"jazz"},
	}
	err := db.CommitPass(ctx, PassWrite{
		UserID:      "u1",
		Interaction: in,
		Upserts: []scoring.TopicScore{
			{Topic: "jazz", Interest: 0.4, AnchorInterest: 0.4, UpdatedAt: 1000},
			{Topic: "blues", Disinterest: 0.2, AnchorDisinterest: 0.2, UpdatedAt: 1000},
		},
	})
	require.NoError(t, err)

	scores, err := db.UserScores(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "blues", scores[0].Topic)
	assert.InDelta(t, 0.4, scores[1].Interest, 1e-9)

	require.NoError(t, db.SaveScores(ctx, "u1", nil, []string{"blues"}))
	scores, err = db.UserScores(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, scores, 1)

	users, err := db.UsersWithScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestCommitPassRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	err := db.CommitPass(ctx, PassWrite{
		UserID: "u1",
		Interaction: &Interaction{
			ID: "i1", UserID: "u1", ContentID: "c1",
			Discovery: scoring.Search, Type: scoring.Like, Timestamp: 1000, BaseScore: 4,
		},
		Upserts: []scoring.TopicScore{{Topic: "jazz", Interest: -1, UpdatedAt: 1000}},
	})
	require.Error(t, err)

	ok, err := db.HasInteraction(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, ok, "interaction must not persist when scores fail")
}

func TestReinforcePairIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	inc := func(r Relationship) float64 { return r.Weight + 1 }

	applied, rel, err := db.ReinforcePair(ctx, "i1", "u1", "jazz", "blues", 1000, inc)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "blues", rel.Topic1)
	assert.Equal(t, int64(1), rel.CoOccurrences)

	applied, _, err = db.ReinforcePair(ctx, "i1", "u1", "blues", "jazz", 1000, inc)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, rel, err = db.ReinforcePair(ctx, "i2", "u2", "blues", "jazz", 2000, inc)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2.0, rel.Weight)
	assert.Equal(t, int64(2000), rel.UpdatedAt)

	got, err := db.GetRelationship(ctx, "jazz", "blues")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.CoOccurrences)

	_, _, err = db.ReinforcePair(ctx, "i3", "u1", "jazz", "jazz", 1000, inc)
	assert.Error(t, err)
}

func TestRelationshipMaintenance(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	set := func(w float64) func(Relationship) float64 {
		return func(Relationship) float64 { return w }
	}

	_, _, err := db.ReinforcePair(ctx, "i1", "u1", "jazz", "blues", 1000, set(10))
	require.NoError(t, err)
	_, _, err = db.ReinforcePair(ctx, "i1", "u1", "jazz", "swing", 1000, set(1.05))
	require.NoError(t, err)
	_, _, err = db.ReinforcePair(ctx, "i2", "u2", "jazz", "blues", 9000, set(10))
	require.NoError(t, err)

	n, err := db.ScaleRelationships(ctx, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pruned, err := db.PruneRelationships(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	rels, err := db.AllRelationships(ctx)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, math.Abs(rels[0].Weight-9) < 1e-9)

	n, err = db.ScaleRelationshipWeights(ctx, map[PairKey]float64{{"blues", "jazz"}: 0.5, {"jazz", "polka"}: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "missing pairs are skipped")
	neighbors, err := db.Neighbors(ctx, "jazz", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.InDelta(t, 4.5, neighbors[0].Weight, 1e-9)
	assert.Equal(t, "blues", neighbors[0].Other("jazz"))

	act, err := db.RelationshipActivity(ctx, 5000, 0)
	require.NoError(t, err)
	a := act[PairKey{"blues", "jazz"}]
	assert.Equal(t, 2, a.Events30d)
	assert.Equal(t, 1, a.Events7d)
	assert.Equal(t, 2, a.UniqueUsers)
	assert.Equal(t, int64(9000), a.LastOccurred)
}

func TestFileStoreConnectionsShareSettings(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "interest.db"))
	require.NoError(t, err)
	defer db.Close()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		c, err := db.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for i, c := range conns {
		var timeout, fk int
		var mode string
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, 5000, timeout, "conn %d", i)
		assert.Equal(t, 1, fk, "conn %d", i)
		assert.Equal(t, "wal", mode, "conn %d", i)
	}
	for _, c := range conns {
		c.Close()
	}
}

func TestFileStoreParallelWriters(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "interest.db"))
	require.NoError(t, err)
	defer db.Close()

	const writers, each = 16, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*each)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", w)
			for i := 0; i < each; i++ {
				err := db.CommitPass(ctx, PassWrite{
					UserID: user,
					Interaction: &Interaction{
						ID: fmt.Sprintf("%s-%d", user, i), UserID: user, ContentID: "c1",
						Discovery: scoring.Search, Type: scoring.Like, Timestamp: int64(1000 + i), BaseScore: 4,
						Topics: []string{"jazz"},
					},
					Upserts: []scoring.TopicScore{{Topic: "jazz", Interest: 1, AnchorInterest: 1, UpdatedAt: int64(1000 + i)}},
				})
				if err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("commit: %v", err)
	}

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions").Scan(&n))
	assert.Equal(t, writers*each, n)
}

func TestScaleRelationshipWeightsKeepsLaterReinforcement(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	add := func(r Relationship) float64 { return r.Weight + 1 }

	_, _, err := db.ReinforcePair(ctx, "i1", "u1", "a", "b", 1000, add)
	require.NoError(t, err)

	// Factors are computed from this snapshot...
	snapshot, err := db.AllRelationships(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	factors := map[PairKey]float64{{snapshot[0].Topic1, snapshot[0].Topic2}: 0.5}

	// ...while another interaction reinforces the pair before they are applied.
	_, _, err = db.ReinforcePair(ctx, "i2", "u1", "a", "b", 2000, add)
	require.NoError(t, err)

	_, err = db.ScaleRelationshipWeights(ctx, factors)
	require.NoError(t, err)

	rel, err := db.GetRelationship(ctx, "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rel.Weight, 1e-9, "2 reinforcements scaled by 0.5")
}

func TestBookkeepingUsesInjectedClock(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db.UseClock(clock.NewManual(at))

	require.NoError(t, db.PutContent(ctx, Content{ID: "c1", Text: "x", Topics: []string{"jazz"}}))
	c, err := db.GetContent(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), c.CreatedAt)
	require.NotNil(t, c.TopicsResolvedAt)
	assert.Equal(t, at.UnixMilli(), *c.TopicsResolvedAt)

	require.NoError(t, db.AppendInteraction(ctx, Interaction{
		ID: "i1", UserID: "u1", ContentID: "c1", Discovery: scoring.Search, Type: scoring.View, Timestamp: 5,
	}))
	var recorded int64
	require.NoError(t, db.QueryRowContext(ctx, "SELECT recorded_at FROM interactions WHERE id = 'i1'").Scan(&recorded))
	assert.Equal(t, at.UnixMilli(), recorded)
}
