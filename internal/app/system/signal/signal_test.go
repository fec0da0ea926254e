package signal_test

import (
	"sync"
	"testing"

	"github.com/dalemusser/stratachart/internal/app/system/signal"
)

func TestCounter_BumpIsMonotonic(t *testing.T) {
	c := signal.New()
	if c.Value() != 0 {
		t.Fatalf("initial value = %d, want 0", c.Value())
	}

	for want := uint64(1); want <= 3; want++ {
		if got := c.Bump(); got != want {
			t.Errorf("Bump() = %d, want %d", got, want)
		}
	}
	if c.Value() != 3 {
		t.Errorf("Value() = %d, want 3", c.Value())
	}
}

func TestCounter_SubscribeAndUnsubscribe(t *testing.T) {
	c := signal.New()

	var seen []uint64
	unsubscribe := c.Subscribe(func(v uint64) {
		seen = append(seen, v)
	})

	c.Bump()
	c.Bump()
	unsubscribe()
	c.Bump()

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("observer saw %v, want [1 2]", seen)
	}
}

func TestCounter_ConcurrentBumps(t *testing.T) {
	c := signal.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Bump()
		}()
	}
	wg.Wait()

	if c.Value() != 50 {
		t.Errorf("Value() = %d, want 50", c.Value())
	}
}
