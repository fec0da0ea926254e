package chartcache

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Cache.
type Option func(*Cache)

// WithFetchTimeout bounds each underlying fetch. The fetch is detached from
// the caller's cancellation, so this is the only thing that stops it.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}
