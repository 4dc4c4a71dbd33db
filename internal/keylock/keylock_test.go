package keylock

import (
	"sync"
	"testing"
)

func TestSameKeySerialized(t *testing.T) {
	l := New(8)
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do("user-1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestStripeStable(t *testing.T) {
	l := New(16)
	if l.stripe("a") != l.stripe("a") {
		t.Error("same key mapped to different stripes")
	}
}

func TestZeroStripes(t *testing.T) {
	l := New(0)
	unlock := l.Lock("x")
	unlock()
}
