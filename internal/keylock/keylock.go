// Package keylock serializes work per string key over a fixed set of
// mutex stripes.
package keylock

import (
	"hash/fnv"
	"sync"
)

// Striped maps keys onto a fixed number of mutexes. Two keys may share a
// stripe; the same key always maps to the same one.
type Striped struct {
	stripes []sync.Mutex
}

// New returns a Striped lock with n stripes (at least one).
func New(n int) *Striped {
	if n < 1 {
		n = 1
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

func (s *Striped) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

// Lock acquires the stripe for key and returns its unlock func.
func (s *Striped) Lock(key string) func() {
	mu := s.stripe(key)
	mu.Lock()
	return mu.Unlock
}

// Do runs fn while holding the stripe for key.
func (s *Striped) Do(key string, fn func() error) error {
	unlock := s.Lock(key)
	defer unlock()
	return fn()
}
