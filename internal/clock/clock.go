// Package clock is the only time source used by the scoring core.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type system struct{}

func (system) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return system{} }

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock fixed at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// DayMillis is the length of one day in epoch milliseconds.
const DayMillis = int64(86_400_000)

// DaysBetween returns the elapsed days from fromMs to toMs, never negative.
func DaysBetween(fromMs, toMs int64) float64 {
	if toMs <= fromMs {
		return 0
	}
	return float64(toMs-fromMs) / float64(DayMillis)
}
