package chartview

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/stratachart/internal/app/system/chartcache"
	"github.com/dalemusser/stratachart/internal/app/system/chartopts"
	"github.com/dalemusser/stratachart/internal/app/system/labels"
	"github.com/dalemusser/stratachart/internal/app/system/signal"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.uber.org/zap"
)

type fetchCall struct {
	scope      string
	mains      []models.MainOption
	rng        string
	compressed bool
}

type fakeHistory struct {
	mu    sync.Mutex
	calls []fetchCall
	err   error
}

func (h *fakeHistory) Fetch(ctx context.Context, scope string, mains []models.MainOption, rng string, compressed bool) (models.Batch, error) {
	h.mu.Lock()
	h.calls = append(h.calls, fetchCall{scope, slices.Clone(mains), rng, compressed})
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	b := make(models.Batch, len(mains))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, m := range mains {
		var s models.RawSeries
		for d := 0; d < 40; d++ {
			s = append(s, models.RawPoint{T: start.AddDate(0, 0, d), Value: int64(d * 10)})
		}
		b[m] = s
	}
	return b, nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type fakeLive struct {
	series models.LiveSeries
	err    error
}

func (l fakeLive) HourlyLive(context.Context, string) (models.LiveSeries, error) {
	return l.series, l.err
}

func liveDay(day time.Time, hours int) models.RawSeries {
	var s models.RawSeries
	for h := 0; h < hours; h++ {
		s = append(s, models.RawPoint{T: day.Add(time.Duration(h) * time.Hour), Value: int64(h * 7)})
	}
	return s
}

func newTestLabels(t *testing.T) *labels.Provider {
	t.Helper()
	p, err := labels.FromDictionaries("en", map[string]map[string]string{
		"en": {"stat.confirmed": "Confirmed", "stat.deceased": "Deceased", "live.today": "Today", "chart.option.one_week_ago": "1 week ago", "source.kdca": "KDCA"},
		"ko": {"stat.confirmed": "확진자", "stat.deceased": "사망자", "live.today": "오늘", "chart.option.one_week_ago": "1주 전", "source.kdca": "질병관리청"},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	return p
}

type fixture struct {
	ctrl    *Controller
	history *fakeHistory
	cache   *chartcache.Cache
}

func newFixture(t *testing.T, build chartopts.BuildFunc, live LiveAPI, priority LivePriority) fixture {
	t.Helper()
	lbl := newTestLabels(t)
	if build == nil {
		build = func(in chartopts.Inputs) *chartopts.Catalog {
			return chartopts.Domestic(lbl.For(in.Locale), in.LivePriority)
		}
	}
	menu := chartopts.NewMenu(build, signal.New(), zap.NewNop())
	t.Cleanup(menu.Close)

	h := &fakeHistory{}
	cache := chartcache.New(signal.New())
	return fixture{
		ctrl: New(Options{
			Menu:      menu,
			Cache:     cache,
			History:   h,
			Live:      live,
			Labels:    lbl,
			Priority:  priority,
			SourceURL: "https://example.org/source",
			Logger:    zap.NewNop(),
		}),
		history: h,
		cache:   cache,
	}
}

func TestRender_ExpandedBatchesOneFetch(t *testing.T) {
	lbl := newTestLabels(t)
	f := newFixture(t, func(in chartopts.Inputs) *chartopts.Catalog {
		tr := lbl.For(in.Locale)
		c, err := chartopts.New(
			chartopts.Definition{
				Main:    models.MainConfirmed,
				Label:   tr("stat.confirmed"),
				Options: chartopts.Offers{models.SubType: chartopts.TypeOffer(tr, chartopts.GenerateOpts{})},
			},
			chartopts.Definition{
				Main:    models.MainDeceased,
				Label:   tr("stat.deceased"),
				Options: chartopts.Offers{models.SubType: chartopts.TypeOffer(tr, chartopts.GenerateOpts{})},
			},
		)
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
		return c
	}, nil, Never)

	res, err := f.ctrl.Render(context.Background(), Request{Scope: "domestic", Locale: "en", Mode: models.ModeExpanded})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if f.history.count() != 1 {
		t.Fatalf("history calls = %d, want 1", f.history.count())
	}
	call := f.history.calls[0]
	if !slices.Equal(call.mains, []models.MainOption{models.MainConfirmed, models.MainDeceased}) {
		t.Errorf("mains = %v", call.mains)
	}
	if call.rng != models.RangeOneMonth || !call.compressed {
		t.Errorf("call = %+v, want oneMonth compressed", call)
	}

	if len(res.Charts) != 2 {
		t.Fatalf("charts = %d, want 2", len(res.Charts))
	}
	wantLabels := []string{"Confirmed", "Deceased"}
	for i, ch := range res.Charts {
		if len(ch.DataSet) != 1 {
			t.Fatalf("chart %d data sets = %d", i, len(ch.DataSet))
		}
		if ch.DataSet[0].Config.StatLabel != wantLabels[i] {
			t.Errorf("chart %d label = %q, want %q", i, ch.DataSet[0].Config.StatLabel, wantLabels[i])
		}
		if len(ch.DataSet[0].Data) != 30 {
			t.Errorf("chart %d points = %d, want 30", i, len(ch.DataSet[0].Data))
		}
		if ch.DataSource == nil || ch.DataSource.Label != "KDCA" {
			t.Errorf("chart %d data source = %+v", i, ch.DataSource)
		}
	}
	if res.Charts[0].Main == res.Charts[1].Main {
		t.Error("charts should be independent per statistic")
	}
}

func TestRender_ExpandedTypeFallsBackToDaily(t *testing.T) {
	f := newFixture(t, nil, nil, Never)
	res, err := f.ctrl.Render(context.Background(), Request{
		Scope:  "domestic",
		Locale: "en",
		Mode:   models.ModeExpanded,
		Values: map[models.SubOption]string{models.SubType: models.TypeMonthly},
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	want := map[models.MainOption]string{
		models.MainConfirmed:         models.AxisMonth,
		models.MainConfirmedCritical: models.AxisDate,
		models.MainDeceased:          models.AxisMonth,
		models.MainTested:            models.AxisDate,
	}
	for _, ch := range res.Charts {
		if ch.XAxis.Kind != want[ch.Main] {
			t.Errorf("%s axis = %q, want %q", ch.Main, ch.XAxis.Kind, want[ch.Main])
		}
	}
}

func TestRender_LiveComparison(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	today := time.Date(2024, 3, 12, 0, 0, 0, 0, kst)
	live := fakeLive{series: models.LiveSeries{
		models.LiveToday:        liveDay(today, 14),
		models.CompareWeekAgo:   liveDay(today.AddDate(0, 0, -7), 24),
		models.CompareYesterday: liveDay(today.AddDate(0, 0, -1), 24),
	}}
	f := newFixture(t, nil, live, Always)
	f.ctrl.loc = kst

	res, err := f.ctrl.Render(context.Background(), Request{
		Scope:  "domestic",
		Locale: "en",
		Main:   models.MainConfirmed,
		Values: map[models.SubOption]string{models.SubType: models.TypeLive, models.SubCompare: models.CompareWeekAgo},
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if res.Mode != models.ModeDefault {
		t.Errorf("mode = %q, want DEFAULT when live is prioritised", res.Mode)
	}
	if f.history.count() != 0 {
		t.Errorf("live chart should not touch the historical API")
	}

	ch := res.Charts[0]
	if len(ch.DataSet) != 2 {
		t.Fatalf("data sets = %d, want 2", len(ch.DataSet))
	}
	compared, todaySet := ch.DataSet[0], ch.DataSet[1]
	if len(compared.Data) != len(todaySet.Data) {
		t.Errorf("x-domain lengths differ: %d vs %d", len(compared.Data), len(todaySet.Data))
	}
	for i := range compared.Data {
		if compared.Data[i].X != todaySet.Data[i].X {
			t.Fatalf("x[%d] differs: %d vs %d", i, compared.Data[i].X, todaySet.Data[i].X)
		}
	}
	if todaySet.Config.Key != models.LiveToday || todaySet.Config.TooltipLabel != "Today" {
		t.Errorf("today config = %+v", todaySet.Config)
	}
	if compared.Config.Key != models.CompareWeekAgo || compared.Config.TooltipLabel != "1 week ago" {
		t.Errorf("compared config = %+v", compared.Config)
	}
	for _, ds := range ch.DataSet {
		if ds.Config.ChartType != models.ChartLine || !ds.Config.ShowPoints {
			t.Errorf("%s: chart type %q show points %v, want line with points", ds.Config.Key, ds.Config.ChartType, ds.Config.ShowPoints)
		}
	}
	if !todaySet.Data[20].Gap {
		t.Error("future hours of today should be gaps")
	}
	if ch.DataSource != nil {
		t.Error("live chart must not carry a data source")
	}
	if ch.XAxis.Kind != models.AxisElapsed {
		t.Errorf("x axis = %q, want elapsed", ch.XAxis.Kind)
	}
	if res.Resolution == nil || res.Resolution.Options.Get(models.SubRange).Enabled() {
		t.Error("live resolution should not offer range")
	}
}

func TestRender_LiveUnavailable(t *testing.T) {
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		live fakeLive
	}{
		{"collaborator error", fakeLive{err: errors.New("down")}},
		{"no series", fakeLive{}},
		{"compared present, today empty", fakeLive{series: models.LiveSeries{
			models.CompareYesterday: liveDay(day.AddDate(0, 0, -1), 24),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, tt.live, Never)
			_, err := f.ctrl.Render(context.Background(), Request{
				Scope:  "domestic",
				Mode:   models.ModeDefault,
				Main:   models.MainConfirmed,
				Values: map[models.SubOption]string{models.SubType: models.TypeLive, models.SubCompare: models.CompareYesterday},
			})
			if !errors.Is(err, ErrLiveUnavailable) {
				t.Errorf("error = %v, want ErrLiveUnavailable", err)
			}
		})
	}
}

func TestRender_DefaultHistory(t *testing.T) {
	f := newFixture(t, nil, nil, Never)
	ctx := context.Background()

	res, err := f.ctrl.Render(ctx, Request{
		Scope:  "domestic",
		Locale: "en",
		Mode:   models.ModeDefault,
		Main:   models.MainDeceased,
		Values: map[models.SubOption]string{models.SubType: models.TypeDaily, models.SubRange: models.RangeAll},
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	call := f.history.calls[0]
	if call.rng != models.RangeAll || !call.compressed {
		t.Errorf("call = %+v, want all-time compressed", call)
	}
	ch := res.Charts[0]
	if len(ch.DataSet[0].Data) != 40 {
		t.Errorf("points = %d, want 40", len(ch.DataSet[0].Data))
	}
	if ch.DataSource == nil || ch.DataSource.URL != "https://example.org/source" {
		t.Errorf("data source = %+v", ch.DataSource)
	}

	// Same view again is served from the cache; invalidate forces a fetch.
	f.ctrl.Render(ctx, Request{Scope: "domestic", Mode: models.ModeDefault, Main: models.MainDeceased, Values: map[models.SubOption]string{models.SubRange: models.RangeAll}})
	if f.history.count() != 1 {
		t.Errorf("history calls = %d, want 1", f.history.count())
	}
	f.ctrl.Render(ctx, Request{Scope: "domestic", Mode: models.ModeDefault, Main: models.MainDeceased, Values: map[models.SubOption]string{models.SubRange: models.RangeAll}, Invalidate: true})
	if f.history.count() != 2 {
		t.Errorf("history calls = %d, want 2", f.history.count())
	}
}

func TestRender_LocaleChangeKeepsCachedSeries(t *testing.T) {
	f := newFixture(t, nil, nil, Never)
	ctx := context.Background()
	req := Request{Scope: "domestic", Locale: "en", Mode: models.ModeExpanded}

	en, err := f.ctrl.Render(ctx, req)
	if err != nil {
		t.Fatalf("Render(en) error: %v", err)
	}
	req.Locale = "ko"
	ko, err := f.ctrl.Render(ctx, req)
	if err != nil {
		t.Fatalf("Render(ko) error: %v", err)
	}

	if f.history.count() != 1 || f.cache.Stats().Fetches != 1 {
		t.Errorf("locale change refetched: history=%d fetches=%d", f.history.count(), f.cache.Stats().Fetches)
	}
	if en.Charts[0].DataSet[0].Config.StatLabel != "Confirmed" || ko.Charts[0].DataSet[0].Config.StatLabel != "확진자" {
		t.Errorf("labels = %q / %q", en.Charts[0].DataSet[0].Config.StatLabel, ko.Charts[0].DataSet[0].Config.StatLabel)
	}
	if ko.Charts[0].DataSource.Label != "질병관리청" {
		t.Errorf("source label = %q", ko.Charts[0].DataSource.Label)
	}
	a, b := en.Charts[0].DataSet[0].Data, ko.Charts[0].DataSet[0].Data
	if len(a) != len(b) {
		t.Fatalf("series lengths differ")
	}
	for i := range a {
		if a[i].X != b[i].X || a[i].Y != b[i].Y {
			t.Fatalf("point %d differs across locales", i)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	f := newFixture(t, nil, nil, Never)
	if _, err := f.ctrl.Render(context.Background(), Request{Mode: "GRID"}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("error = %v, want ErrUnknownMode", err)
	}
	if _, err := f.ctrl.Render(context.Background(), Request{Mode: models.ModeDefault, Main: "recovered"}); !errors.Is(err, chartopts.ErrUnknownMainOption) {
		t.Errorf("error = %v, want ErrUnknownMainOption", err)
	}

	f.history.err = errors.New("boom")
	if _, err := f.ctrl.Render(context.Background(), Request{Mode: models.ModeExpanded}); err == nil {
		t.Error("expected fetch error")
	}
}

func TestInitialModeAndSchedule(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, kst)
	withToday := fakeLive{series: models.LiveSeries{models.LiveToday: liveDay(day, 3)}}

	tests := []struct {
		name  string
		sched LiveSchedule
		want  models.ViewMode
	}{
		{
			name:  "disabled",
			sched: LiveSchedule{Enabled: false, Live: withToday},
			want:  models.ModeExpanded,
		},
		{
			name:  "too early",
			sched: LiveSchedule{Enabled: true, FromHour: 10, Location: kst, Live: withToday, Now: func() time.Time { return day.Add(9 * time.Hour) }},
			want:  models.ModeExpanded,
		},
		{
			name:  "no data today",
			sched: LiveSchedule{Enabled: true, FromHour: 10, Location: kst, Live: fakeLive{}, Now: func() time.Time { return day.Add(11 * time.Hour) }},
			want:  models.ModeExpanded,
		},
		{
			name:  "prioritised",
			sched: LiveSchedule{Enabled: true, FromHour: 10, Location: kst, Live: withToday, Now: func() time.Time { return day.Add(11 * time.Hour) }},
			want:  models.ModeDefault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, tt.sched.Live, tt.sched)
			if got := f.ctrl.InitialMode(context.Background(), "domestic"); got != tt.want {
				t.Errorf("InitialMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

// countingPriority counts how often the wrapped decision is computed.
type countingPriority struct {
	calls atomic.Int32
	val   bool
}

func (p *countingPriority) Prioritised(context.Context, string) bool {
	p.calls.Add(1)
	return p.val
}

func TestCachedPriority(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	now := time.Date(2024, 3, 12, 11, 5, 0, 0, kst)
	inner := &countingPriority{val: true}
	force := signal.New()
	p := NewCachedPriority(inner, force, kst)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	for range 3 {
		if !p.Prioritised(ctx, "domestic") {
			t.Fatal("Prioritised() = false, want true")
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("inner calls = %d, want 1 within one generation and hour", got)
	}

	p.Prioritised(ctx, "city/seoul")
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("inner calls = %d, want a separate answer per scope", got)
	}

	inner.val = false
	force.Bump()
	if p.Prioritised(ctx, "domestic") {
		t.Error("force update should recompute the priority")
	}

	now = now.Add(time.Hour)
	inner.val = true
	if !p.Prioritised(ctx, "domestic") {
		t.Error("a new local hour should recompute the priority")
	}
	if got := inner.calls.Load(); got != 4 {
		t.Errorf("inner calls = %d, want 4", got)
	}
}
