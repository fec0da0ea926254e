// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown is an optional hook invoked during WAFFLE's shutdown phase.
//
// This function is called after the HTTP server has stopped accepting new
// requests and existing requests have been drained (or the shutdown timeout
// has elapsed). The context has a timeout and should be respected.
//
// Background jobs are stopped first so none of them touches MongoDB after
// the client is disconnected.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var firstErr error

	// Stop background task runner with context timeout
	if taskRunner != nil {
		logger.Info("stopping background task runner")
		if err := taskRunner.Stop(ctx); err != nil {
			logger.Warn("background task runner did not stop cleanly", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Detach option menus from the force-update signal
	if svc != nil && svc.menu != nil {
		svc.menu.Close()
		st := svc.cache.Stats()
		logger.Info("chart cache final stats",
			zap.Uint64("generation", svc.cache.Generation()),
			zap.Uint64("hits", st.Hits),
			zap.Uint64("misses", st.Misses),
			zap.Uint64("fetches", st.Fetches),
			zap.Int("entries", st.Entries))
	}

	// Disconnect MongoDB client
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
