// Package timeouts provides centralized timeout values for handler and
// job operations.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultRender = 15 * time.Second
	DefaultBatch  = 60 * time.Second
)

// Config holds timeout configuration values. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration // health checks
	Short  time.Duration // single-document reads and writes
	Render time.Duration // one chart render including collaborator fetches
	Batch  time.Duration // pack and retention jobs
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Render: DefaultRender, Batch: DefaultBatch}
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return Current().Ping }

// Short returns the timeout for simple operations.
func Short() time.Duration { return Current().Short }

// Render returns the timeout for a chart render.
func Render() time.Duration { return Current().Render }

// Batch returns the timeout for bulk operations.
func Batch() time.Duration { return Current().Batch }

// Configure sets custom timeout values.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		cur.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		cur.Short = cfg.Short
	}
	if cfg.Render > 0 {
		cur.Render = cfg.Render
	}
	if cfg.Batch > 0 {
		cur.Batch = cfg.Batch
	}
}

// Reset restores all timeouts to defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout creates a context with timeout and logs when the deadline is hit.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
