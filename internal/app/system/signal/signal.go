// Package signal provides monotonically increasing counters with change
// observers. The chart cache uses one as its global invalidation signal and
// the option menus use another as the externally driven force-update trigger.
package signal

import (
	"sync"
	"sync/atomic"
)

// Counter is a process-wide generation counter. Increments are never rolled
// back and are visible to every reader that loads after Bump returns.
type Counter struct {
	value atomic.Uint64

	mu        sync.Mutex
	nextID    int
	observers map[int]func(uint64)
}

// New creates a counter starting at zero.
func New() *Counter {
	return &Counter{observers: make(map[int]func(uint64))}
}

// Value returns the current generation.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Bump increments the counter, notifies observers synchronously, and returns
// the new generation.
func (c *Counter) Bump() uint64 {
	v := c.value.Add(1)

	c.mu.Lock()
	fns := make([]func(uint64), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return v
}

// Subscribe registers fn to be called after every Bump with the new value.
// The returned function removes the subscription.
func (c *Counter) Subscribe(fn func(uint64)) (unsubscribe func()) {
	c.mu.Lock()
	if c.observers == nil {
		c.observers = make(map[int]func(uint64))
	}
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}
