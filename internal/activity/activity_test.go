package activity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/interest/internal/clock"
	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/scoring"
	"github.com/lazypower/interest/internal/store"
)

type fakeLog struct {
	events []store.Interaction
	err    error
}

func (f *fakeLog) InteractionsBetween(_ context.Context, userID string, from, to int64) ([]store.Interaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Interaction
	for _, e := range f.events {
		if e.UserID == userID && e.Timestamp >= from && e.Timestamp <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func events(userID string, n int, typ scoring.InteractionType, age time.Duration) []store.Interaction {
	out := make([]store.Interaction, n)
	for i := range out {
		out[i] = store.Interaction{
			ID:        fmt.Sprintf("%s-%d", userID, i),
			UserID:    userID,
			Type:      typ,
			Timestamp: now.Add(-age).UnixMilli(),
		}
	}
	return out
}

func newClassifier(log InteractionLog) *Classifier {
	return NewClassifier(config.Default().Activity, log, clock.NewManual(now))
}

func TestNoActivity(t *testing.T) {
	c := newClassifier(&fakeLog{})
	p, err := c.Profile(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, NoActivity, p.Level)
	assert.Equal(t, 2.0, p.InfluenceMultiplier)
	assert.Equal(t, 1.5, p.DiffusionFactor)
	require.Len(t, p.Horizons, 3)
}

func TestSingleInteractionIsLow(t *testing.T) {
	c := newClassifier(&fakeLog{events: events("casual", 1, scoring.Like, time.Hour)})
	p, err := c.Profile(context.Background(), "casual")
	require.NoError(t, err)
	assert.Equal(t, Low, p.Level)
	assert.InDelta(t, 2.0-1.7/6, p.InfluenceMultiplier, 1e-9)
	assert.Equal(t, 1.4, p.DiffusionFactor)
}

func TestOldActivityStillLow(t *testing.T) {
	c := newClassifier(&fakeLog{events: events("lapsed", 1, scoring.View, 200*24*time.Hour)})
	p, err := c.Profile(context.Background(), "lapsed")
	require.NoError(t, err)
	assert.Less(t, p.Score, 1.0)
	assert.Equal(t, Low, p.Level, "any interaction keeps the user above NO_ACTIVITY")
}

func TestPowerUser(t *testing.T) {
	c := newClassifier(&fakeLog{events: events("power", 200, scoring.Comment, time.Hour)})
	p, err := c.Profile(context.Background(), "power")
	require.NoError(t, err)
	assert.Equal(t, Nolifer, p.Level)
	assert.InDelta(t, 0.3, p.InfluenceMultiplier, 1e-9)
	assert.Equal(t, 0.4, p.DiffusionFactor)
}

func TestHorizonStats(t *testing.T) {
	evs := append(events("u", 2, scoring.Like, time.Hour), events("u", 3, scoring.Comment, 10*24*time.Hour)...)
	c := newClassifier(&fakeLog{events: evs})
	p, err := c.Profile(context.Background(), "u")
	require.NoError(t, err)

	day, month, year := p.Horizons[0], p.Horizons[1], p.Horizons[2]
	assert.Equal(t, 1, day.Days)
	assert.Equal(t, 2, day.Total)
	assert.Equal(t, 2.0, day.Weighted)
	assert.Equal(t, 5, month.Total)
	assert.Equal(t, 11.0, month.Weighted)
	assert.Equal(t, 2, month.UniqueActiveDays)
	assert.InDelta(t, 5.0/30, month.DailyAverage, 1e-9)
	assert.Equal(t, 5, year.Total)

	want := (0.5*2*30 + 0.3*11*1 + 0.2*11*30/365) / 1.0
	assert.InDelta(t, want, p.Score, 1e-9)
	assert.Equal(t, Low, p.Level)
}

func TestMultipliersMonotone(t *testing.T) {
	c := newClassifier(&fakeLog{})
	for i := 1; i < len(Levels); i++ {
		assert.Less(t, c.InfluenceMultiplier(Levels[i]), c.InfluenceMultiplier(Levels[i-1]))
		assert.LessOrEqual(t, c.DiffusionFactor(Levels[i]), c.DiffusionFactor(Levels[i-1]))
	}
}

func TestProfileLogError(t *testing.T) {
	c := newClassifier(&fakeLog{err: errors.New("disk gone")})
	_, err := c.Profile(context.Background(), "u")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "MID_HIGH_ACTIVITY", MidHigh.String())
	b, err := High.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"HIGH_ACTIVITY"`, string(b))
}
