// Package chartview assembles chart payloads. It picks between the single
// statistic view (DEFAULT) and the combined view (EXPANDED), resolves options,
// pulls data through the cache or the live collaborator, and transforms it.
package chartview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratachart/internal/app/system/chartcache"
	"github.com/dalemusser/stratachart/internal/app/system/chartopts"
	"github.com/dalemusser/stratachart/internal/app/system/series"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.uber.org/zap"
)

var (
	// ErrLiveUnavailable is returned when a live chart is requested but the
	// live collaborator has no data for the scope.
	ErrLiveUnavailable = errors.New("live data unavailable")
	// ErrUnknownMode is returned for a view mode other than DEFAULT or EXPANDED.
	ErrUnknownMode = errors.New("unknown view mode")
)

// ExpandedRange is the fixed range of the combined view.
const ExpandedRange = models.RangeOneMonth

// Translator returns the translate function for a locale.
type Translator interface {
	For(locale string) func(key string) string
}

// Request describes one render. An empty Mode means the initial mode.
type Request struct {
	Scope      string
	Locale     string
	Mode       models.ViewMode
	Main       models.MainOption
	Values     map[models.SubOption]string
	Invalidate bool
}

// Result is what the rendering boundary consumes. Resolution is set in
// DEFAULT mode only.
type Result struct {
	Mode       models.ViewMode       `json:"mode"`
	Resolution *chartopts.Resolution `json:"resolution,omitempty"`
	Charts     []models.Chart        `json:"charts"`
}

// Options configures a Controller.
type Options struct {
	Menu      *chartopts.Menu
	Cache     *chartcache.Cache
	History   HistoryAPI
	Live      LiveAPI
	Labels    Translator
	Priority  LivePriority
	Location  *time.Location
	SourceURL string
	Logger    *zap.Logger
}

// Controller is safe for concurrent use; all mutable state lives in the
// menu and the cache.
type Controller struct {
	menu      *chartopts.Menu
	cache     *chartcache.Cache
	history   HistoryAPI
	live      LiveAPI
	labels    Translator
	priority  LivePriority
	loc       *time.Location
	sourceURL string
	logger    *zap.Logger
}

// New creates a controller.
func New(opts Options) *Controller {
	c := &Controller{
		menu:      opts.Menu,
		cache:     opts.Cache,
		history:   opts.History,
		live:      opts.Live,
		labels:    opts.Labels,
		priority:  opts.Priority,
		loc:       opts.Location,
		sourceURL: opts.SourceURL,
		logger:    opts.Logger,
	}
	if c.priority == nil {
		c.priority = Never
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// InitialMode is DEFAULT when live data is prioritised for scope and
// EXPANDED otherwise.
func (c *Controller) InitialMode(ctx context.Context, scope string) models.ViewMode {
	if c.priority.Prioritised(ctx, scope) {
		return models.ModeDefault
	}
	return models.ModeExpanded
}

// Catalog returns the option catalog in effect for scope and locale.
func (c *Controller) Catalog(ctx context.Context, scope, locale string) *chartopts.Catalog {
	return c.menu.Catalog(locale, c.priority.Prioritised(ctx, scope))
}

// Resolve resolves main (the first tab when empty) against values.
func (c *Controller) Resolve(ctx context.Context, scope, locale string, main models.MainOption, values map[models.SubOption]string) (*chartopts.Catalog, chartopts.Resolution, error) {
	cat := c.Catalog(ctx, scope, locale)
	if main == "" {
		if tabs := cat.MainOptions(); len(tabs) > 0 {
			main = tabs[0].ID
		}
	}
	res, err := cat.Resolve(main, values)
	return cat, res, err
}

// Render assembles the charts for req.
func (c *Controller) Render(ctx context.Context, req Request) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = c.InitialMode(ctx, req.Scope)
	}
	switch mode {
	case models.ModeDefault:
		return c.renderDefault(ctx, req)
	case models.ModeExpanded:
		return c.renderExpanded(ctx, req)
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func (c *Controller) renderDefault(ctx context.Context, req Request) (Result, error) {
	cat, res, err := c.Resolve(ctx, req.Scope, req.Locale, req.Main, req.Values)
	if err != nil {
		return Result{}, err
	}
	tr := c.labels.For(req.Locale)
	sel := res.Selection

	var chart models.Chart
	if sel.Type() == models.TypeLive {
		chart, err = c.liveChart(ctx, req.Scope, sel, tr)
	} else {
		chart, err = c.historyChart(ctx, req, cat, sel, tr)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Mode: models.ModeDefault, Resolution: &res, Charts: []models.Chart{chart}}, nil
}

func (c *Controller) historyChart(ctx context.Context, req Request, cat *chartopts.Catalog, sel models.SelectedOptions, tr func(string) string) (models.Chart, error) {
	typ, rng := sel.Type(), sel.Range()
	if rng == "" {
		rng = models.RangeAll
	}
	key := chartcache.NewKey(req.Scope, []models.MainOption{sel.Main}, rng, Compressed(rng))
	batch, err := c.cache.GetOrFetch(ctx, key, c.fetcher(), req.Invalidate)
	if err != nil {
		return models.Chart{}, err
	}

	data, err := series.Transform(batch[sel.Main], typ, rng)
	if err != nil {
		return models.Chart{}, fmt.Errorf("transform %s: %w", sel.Main, err)
	}
	return models.Chart{
		Main:       sel.Main,
		DataSet:    []models.DataSet{{Data: data, Config: seriesConfig(sel.Main, typ, tr, cat.Label(sel.Main))}},
		XAxis:      xAxis(typ, rng),
		YAxis:      yAxis(),
		DataSource: c.dataSource(tr),
	}, nil
}

// liveChart overlays today's running series on the selected comparison day.
// Both share the elapsed-time-of-day domain. Live data is not finalized, so
// the chart carries no source attribution.
func (c *Controller) liveChart(ctx context.Context, scope string, sel models.SelectedOptions, tr func(string) string) (models.Chart, error) {
	if c.live == nil {
		return models.Chart{}, ErrLiveUnavailable
	}
	lv, err := c.live.HourlyLive(ctx, scope)
	if err != nil {
		return models.Chart{}, fmt.Errorf("%w: %w", ErrLiveUnavailable, err)
	}
	window := sel.Compare()
	today, compared := lv[models.LiveToday], lv[window]
	if len(today) == 0 {
		return models.Chart{}, fmt.Errorf("%w: scope %q", ErrLiveUnavailable, scope)
	}

	return models.Chart{
		Main: sel.Main,
		DataSet: []models.DataSet{
			{
				Data: series.Hours(compared, c.loc),
				Config: models.SeriesConfig{
					Key:          window,
					ChartType:    models.ChartLine,
					Color:        colorLiveCompare,
					TooltipLabel: tr(chartopts.LabelKey(models.SubCompare, window)),
					ShowPoints:   true,
				},
			},
			{
				Data: series.Hours(today, c.loc),
				Config: models.SeriesConfig{
					Key:          models.LiveToday,
					ChartType:    models.ChartLine,
					Color:        colorLiveToday,
					TooltipLabel: tr("live.today"),
					ShowPoints:   true,
				},
			},
		},
		XAxis: liveXAxis(),
		YAxis: yAxis(),
	}, nil
}

// renderExpanded fetches one compressed batch for every tab and renders each
// statistic from its own slice.
func (c *Controller) renderExpanded(ctx context.Context, req Request) (Result, error) {
	cat := c.Catalog(ctx, req.Scope, req.Locale)
	tr := c.labels.For(req.Locale)
	tabs := cat.MainOptions()

	mains := make([]models.MainOption, len(tabs))
	for i, t := range tabs {
		mains[i] = t.ID
	}
	key := chartcache.NewKey(req.Scope, mains, ExpandedRange, true)
	batch, err := c.cache.GetOrFetch(ctx, key, c.fetcher(), req.Invalidate)
	if err != nil {
		return Result{}, err
	}

	wantType := models.TypeDaily
	if t := req.Values[models.SubType]; t != "" {
		wantType = t
	}

	charts := make([]models.Chart, 0, len(tabs))
	for _, tab := range tabs {
		typ := expandedType(cat, tab.ID, wantType)
		data, err := series.Transform(batch[tab.ID], typ, ExpandedRange)
		if err != nil {
			return Result{}, fmt.Errorf("transform %s: %w", tab.ID, err)
		}
		charts = append(charts, models.Chart{
			Main:       tab.ID,
			DataSet:    []models.DataSet{{Data: data, Config: seriesConfig(tab.ID, typ, tr, tab.Label)}},
			XAxis:      xAxis(typ, ExpandedRange),
			YAxis:      yAxis(),
			DataSource: c.dataSource(tr),
		})
	}
	return Result{Mode: models.ModeExpanded, Charts: charts}, nil
}

// expandedType uses the requested type where the statistic allows it and it
// is not live; otherwise daily.
func expandedType(cat *chartopts.Catalog, main models.MainOption, want string) string {
	if want == models.TypeLive {
		return models.TypeDaily
	}
	res, err := cat.Resolve(main, map[models.SubOption]string{models.SubType: want})
	if err != nil || res.Selection.Type() != want {
		return models.TypeDaily
	}
	return want
}

func (c *Controller) fetcher() chartcache.Fetcher {
	return func(ctx context.Context, key chartcache.Key) (models.Batch, error) {
		return c.history.Fetch(ctx, key.Scope, key.Mains, key.Range, key.Compressed)
	}
}

func (c *Controller) dataSource(tr func(string) string) *models.DataSource {
	return &models.DataSource{Label: tr("source.kdca"), URL: c.sourceURL}
}

// Compressed reports whether rng is fetched in the compressed representation.
// All-time data is always compressed.
func Compressed(rng string) bool {
	return rng == models.RangeAll
}
