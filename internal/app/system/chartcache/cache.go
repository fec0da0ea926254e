// Package chartcache caches batches of raw chart series per Key.
//
// An entry is fresh while its generation stamp is at least the value of the
// process-wide invalidation counter. At most one fetch per key and generation
// is in flight; concurrent callers share its result. Failed fetches are never
// stored.
package chartcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/stratachart/internal/app/system/signal"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrPartialBatch is returned when a fetch omits a requested statistic.
	ErrPartialBatch = errors.New("partial batch response")
	// ErrNilBatch is returned when a fetch succeeds without a batch.
	ErrNilBatch = errors.New("fetch returned no batch")
)

// DefaultFetchTimeout bounds a fetch when WithFetchTimeout is not given.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher loads the batch for key.
type Fetcher func(ctx context.Context, key Key) (models.Batch, error)

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Fetches uint64 `json:"fetches"`
	Entries int    `json:"entries"`
}

type entry struct {
	id         string
	batch      models.Batch
	generation uint64
	seq        uint64
	fetchedAt  time.Time
}

// pending is a forced fetch in progress. Plain readers of the same key and
// generation wait on done instead of starting their own fetch.
type pending struct {
	done  chan struct{}
	batch models.Batch
	err   error
}

func (p *pending) wait(ctx context.Context) (models.Batch, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.batch, p.err
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	gen     *signal.Counter
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*entry
	seq     map[string]uint64
	forced  map[string]*pending

	hits    atomic.Uint64
	misses  atomic.Uint64
	fetches atomic.Uint64
}

// New creates a cache whose freshness follows gen.
func New(gen *signal.Counter, opts ...Option) *Cache {
	if gen == nil {
		gen = signal.New()
	}
	c := &Cache{
		gen:     gen,
		logger:  zap.NewNop(),
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		entries: make(map[string]*entry),
		seq:     make(map[string]uint64),
		forced:  make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation returns the current invalidation generation.
func (c *Cache) Generation() uint64 {
	return c.gen.Value()
}

// Invalidate bumps the invalidation counter so every existing entry is stale
// on its next read. It returns the new generation.
func (c *Cache) Invalidate() uint64 {
	g := c.gen.Bump()
	c.logger.Info("chart cache invalidated", zap.Uint64("generation", g))
	return g
}

// GetOrFetch returns the cached batch for key, fetching it when there is no
// entry, the entry is stale, or shouldInvalidate is set. Callers must not
// mutate the returned batch.
//
// If ctx ends while a fetch is pending the caller gets ctx.Err(), but the
// fetch still completes and its result is stored.
func (c *Cache) GetOrFetch(ctx context.Context, key Key, fetch Fetcher, shouldInvalidate bool) (models.Batch, error) {
	id := key.String()
	g := c.gen.Value()

	if !shouldInvalidate {
		if b, ok := c.fresh(id, g); ok {
			c.hits.Add(1)
			c.logger.Debug("chart cache hit", zap.String("cache_key", id), zap.Uint64("generation", g))
			return b, nil
		}
	}
	c.misses.Add(1)

	// Forced refreshes share a flight with each other but never join a plain
	// read, whose flight may have been satisfied from the cache. Plain reads
	// join a running forced fetch, which returns data at least as new.
	flight := id + "#" + strconv.FormatUint(g, 10)
	detached := context.WithoutCancel(ctx)
	var ch <-chan singleflight.Result
	if shouldInvalidate {
		ch = c.group.DoChan(flight+"!", func() (any, error) {
			p := c.beginForced(flight)
			b, err := c.fetch(detached, key, id, g, fetch)
			c.endForced(flight, p, b, err)
			return b, err
		})
	} else {
		if p := c.forcedFlight(flight); p != nil {
			return p.wait(ctx)
		}
		ch = c.group.DoChan(flight, func() (any, error) {
			if b, ok := c.fresh(id, g); ok {
				return b, nil
			}
			if p := c.forcedFlight(flight); p != nil {
				return p.wait(detached)
			}
			return c.fetch(detached, key, id, g, fetch)
		})
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(models.Batch), nil
	}
}

func (c *Cache) beginForced(flight string) *pending {
	p := &pending{done: make(chan struct{})}
	c.mu.Lock()
	c.forced[flight] = p
	c.mu.Unlock()
	return p
}

func (c *Cache) endForced(flight string, p *pending, b models.Batch, err error) {
	p.batch, p.err = b, err
	c.mu.Lock()
	if c.forced[flight] == p {
		delete(c.forced, flight)
	}
	c.mu.Unlock()
	close(p.done)
}

func (c *Cache) forcedFlight(flight string) *pending {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forced[flight]
}

func (c *Cache) fresh(id string, g uint64) (models.Batch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || e.generation < g {
		return nil, false
	}
	return e.batch, true
}

// fetch runs one underlying fetch and stores the result. The entry is stamped
// with the generation observed when the request started, so a bump during
// the fetch leaves the stored entry stale. A fetch that started before the
// one that produced the current entry never overwrites it.
func (c *Cache) fetch(ctx context.Context, key Key, id string, g uint64, fetch Fetcher) (models.Batch, error) {
	c.mu.Lock()
	c.seq[id]++
	seq := c.seq[id]
	c.mu.Unlock()

	fetchID := uuid.NewString()
	c.fetches.Add(1)
	start := c.now()
	c.logger.Info("chart data fetch started",
		zap.String("fetch_id", fetchID),
		zap.String("cache_key", id),
		zap.Uint64("generation", g),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	batch, err := fetch(ctx, key)
	if err == nil {
		err = checkBatch(key, batch)
	}
	if err != nil {
		c.logger.Warn("chart data fetch failed",
			zap.String("fetch_id", fetchID),
			zap.String("cache_key", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	c.mu.Lock()
	cur, ok := c.entries[id]
	if !ok || cur.seq < seq {
		cur = &entry{id: fetchID, batch: batch, generation: g, seq: seq, fetchedAt: c.now()}
		c.entries[id] = cur
	}
	c.mu.Unlock()

	c.logger.Info("chart data fetch finished",
		zap.String("fetch_id", fetchID),
		zap.String("cache_key", id),
		zap.Int("series", len(batch)),
		zap.Duration("elapsed", c.now().Sub(start)),
	)
	return cur.batch, nil
}

func checkBatch(key Key, batch models.Batch) error {
	if batch == nil {
		return ErrNilBatch
	}
	for _, m := range key.Mains {
		if _, ok := batch[m]; !ok {
			return fmt.Errorf("%w: missing %q", ErrPartialBatch, m)
		}
	}
	return nil
}

// Prune drops entries that are stale for the current generation and returns
// how many were removed.
func (c *Cache) Prune() int {
	g := c.gen.Value()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if e.generation < g {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Fetches: c.fetches.Load(),
		Entries: n,
	}
}
