// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/stratachart/internal/app/store/history"
	"github.com/dalemusser/stratachart/internal/app/store/live"
	"github.com/dalemusser/stratachart/internal/app/system/chartcache"
	"github.com/dalemusser/stratachart/internal/app/system/signal"
	"go.uber.org/zap"
)

// Job names.
const (
	HistoryPackJobName     = "history-pack"
	LiveRefreshJobName     = "live-refresh"
	LiveRetentionJobName   = "live-retention"
	StatsRetentionJobName  = "api-stats-retention"
	LedgerRetentionJobName = "ingest-ledger-retention"
)

// HistoryPacker rebuilds compressed history.
type HistoryPacker interface {
	Pairs(ctx context.Context) ([]history.Pair, error)
	Pack(ctx context.Context, p history.Pair) (bool, error)
}

// LiveWatcher reports the newest live write.
type LiveWatcher interface {
	LastUpdate(ctx context.Context) (time.Time, error)
}

// Pruner deletes records older than a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryPackJob creates a job that rebuilds the packed all-time series that
// compressed fetches read. When any pack changes, the chart cache is
// invalidated and its stale entries are dropped.
func HistoryPackJob(store HistoryPacker, cache *chartcache.Cache, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     HistoryPackJobName,
		Interval: interval,
		Timeout:  interval,
		Run: func(ctx context.Context) error {
			pairs, err := store.Pairs(ctx)
			if err != nil {
				return err
			}
			changed := 0
			var errs []error
			for _, p := range pairs {
				ok, err := store.Pack(ctx, p)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if ok {
					changed++
				}
			}
			if changed > 0 {
				g := cache.Invalidate()
				logger.Info("packed history series",
					zap.Int("changed", changed),
					zap.Int("pruned", cache.Prune()),
					zap.Uint64("generation", g))
			}
			return errors.Join(errs...)
		},
	}
}

// LiveRefreshJob creates a job that watches live writes and bumps the
// force-update counter when new samples arrive, so option menus are rebuilt
// with the current live availability.
func LiveRefreshJob(store LiveWatcher, force *signal.Counter, interval time.Duration, logger *zap.Logger) Job {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return Job{
		Name:     LiveRefreshJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			at, err := store.LastUpdate(ctx)
			if errors.Is(err, live.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if !at.After(last) {
				return nil
			}
			last = at
			v := force.Bump()
			logger.Info("live data updated",
				zap.Time("last_update", at),
				zap.Uint64("force_update", v))
			return nil
		},
	}
}

// LiveRetentionJob creates a job that removes live samples no comparison
// window can reach anymore.
func LiveRetentionJob(store Pruner, logger *zap.Logger) Job {
	return Job{
		Name:     LiveRetentionJobName,
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteOlderThan(ctx, time.Now().Add(-live.Retention()))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up old live samples",
					zap.Int64("deleted", n))
			}
			return nil
		},
	}
}

// StatsRetentionJob creates a job that removes request statistics older than
// retention.
func StatsRetentionJob(store Pruner, retention time.Duration, logger *zap.Logger) Job {
	return retentionJob(StatsRetentionJobName, "api stats", store, retention, logger)
}

// LedgerRetentionJob creates a job that removes failed-request ledger entries
// older than retention.
func LedgerRetentionJob(store Pruner, retention time.Duration, logger *zap.Logger) Job {
	return retentionJob(LedgerRetentionJobName, "ingest ledger entries", store, retention, logger)
}

func retentionJob(name, what string, store Pruner, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     name,
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up old "+what,
					zap.Int64("deleted", n),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}
