// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	apistatsstore "github.com/dalemusser/stratachart/internal/app/store/apistats"
	"github.com/dalemusser/stratachart/internal/app/store/history"
	ledgerstore "github.com/dalemusser/stratachart/internal/app/store/ledger"
	"github.com/dalemusser/stratachart/internal/app/store/live"
	"github.com/dalemusser/stratachart/internal/app/system/chartcache"
	"github.com/dalemusser/stratachart/internal/app/system/chartopts"
	"github.com/dalemusser/stratachart/internal/app/system/chartview"
	"github.com/dalemusser/stratachart/internal/app/system/labels"
	"github.com/dalemusser/stratachart/internal/app/system/signal"
	"github.com/dalemusser/stratachart/internal/app/system/tasks"
	"github.com/dalemusser/stratachart/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services holds the long-lived chart components shared by BuildHandler,
// the background jobs and Shutdown.
type services struct {
	invalidation *signal.Counter
	forceUpdate  *signal.Counter

	cache    *chartcache.Cache
	labels   *labels.Provider
	menu     *chartopts.Menu
	history  *history.Store
	live     *live.Store
	apiStats *apistatsstore.Store
	ledger   *ledgerstore.Store
	charts   *chartview.Controller
}

// svc is the global service set, built in Startup.
var svc *services

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It builds the chart pipeline (labels, option menus, cache, stores and the
// view controller) and starts the background jobs. Returning a non-nil error
// aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Render: appCfg.RenderTimeout,
		Batch:  appCfg.ChartFetchTimeout,
	})

	s, err := buildServices(appCfg, deps, logger)
	if err != nil {
		logger.Error("failed to build chart services", zap.Error(err))
		return err
	}
	svc = s

	// Start background task runner
	startTaskRunner(appCfg, s, logger)

	logger.Info("chart services ready",
		zap.Strings("locales", s.labels.Locales()),
		zap.String("default_locale", s.labels.Default()),
		zap.Bool("live_chart_enabled", appCfg.LiveChartEnabled),
		zap.Int("live_chart_from_hour", appCfg.LiveChartFromHour))
	return nil
}

func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	loc := appCfg.Location()

	lbl, err := labels.New(appCfg.DefaultLocale, logger)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}

	s := &services{
		invalidation: signal.New(),
		forceUpdate:  signal.New(),
		labels:       lbl,
		history:      history.New(deps.MongoDatabase),
		live:         live.New(deps.MongoDatabase, loc),
		apiStats:     apistatsstore.New(deps.MongoDatabase, appCfg.APIStatsBucket),
		ledger:       ledgerstore.New(deps.MongoDatabase),
	}

	s.cache = chartcache.New(s.invalidation,
		chartcache.WithFetchTimeout(appCfg.ChartFetchTimeout),
		chartcache.WithLogger(logger))

	s.menu = chartopts.NewMenu(func(in chartopts.Inputs) *chartopts.Catalog {
		return chartopts.Domestic(lbl.For(in.Locale), in.LivePriority)
	}, s.forceUpdate, logger)

	s.charts = chartview.New(chartview.Options{
		Menu:    s.menu,
		Cache:   s.cache,
		History: s.history,
		Live:    s.live,
		Labels:  lbl,
		Priority: chartview.NewCachedPriority(chartview.LiveSchedule{
			Enabled:  appCfg.LiveChartEnabled,
			FromHour: appCfg.LiveChartFromHour,
			Location: loc,
			Live:     s.live,
			Logger:   logger,
		}, s.forceUpdate, loc),
		Location:  loc,
		SourceURL: appCfg.DataSourceURL,
		Logger:    logger,
	})
	return s, nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(appCfg AppConfig, s *services, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	// Keep packed all-time series current for compressed fetches
	taskRunner.Register(tasks.HistoryPackJob(s.history, s.cache, appCfg.HistoryPackInterval, logger))

	// Rebuild option menus when live availability changes
	taskRunner.Register(tasks.LiveRefreshJob(s.live, s.forceUpdate, appCfg.LiveRefreshInterval, logger))

	// Retention sweeps
	taskRunner.Register(tasks.LiveRetentionJob(s.live, logger))
	taskRunner.Register(tasks.StatsRetentionJob(s.apiStats, appCfg.APIStatsRetention, logger))
	taskRunner.Register(tasks.LedgerRetentionJob(s.ledger, appCfg.LedgerRetention, logger))

	// Start running jobs
	taskRunner.Start()
}
