package chartview

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/stratachart/internal/app/system/signal"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.uber.org/zap"
)

// HistoryAPI returns finalized cumulative series for a set of statistics.
// A compressed fetch reads the packed representation.
type HistoryAPI interface {
	Fetch(ctx context.Context, scope string, mains []models.MainOption, rng string, compressed bool) (models.Batch, error)
}

// LiveAPI returns the hourly live series for a scope keyed by "today" and by
// comparison window.
type LiveAPI interface {
	HourlyLive(ctx context.Context, scope string) (models.LiveSeries, error)
}

// LivePriority decides whether live data should be shown first.
type LivePriority interface {
	Prioritised(ctx context.Context, scope string) bool
}

// LiveSchedule prioritises the live chart when it is enabled, the local hour
// has reached FromHour, and today's live series has data.
type LiveSchedule struct {
	Enabled  bool
	FromHour int
	Location *time.Location
	Live     LiveAPI
	Now      func() time.Time
	Logger   *zap.Logger
}

// Prioritised implements LivePriority.
func (s LiveSchedule) Prioritised(ctx context.Context, scope string) bool {
	if !s.Enabled || s.Live == nil {
		return false
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if now().In(loc).Hour() < s.FromHour {
		return false
	}

	lv, err := s.Live.HourlyLive(ctx, scope)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("live data unavailable for priority check", zap.String("scope", scope), zap.Error(err))
		}
		return false
	}
	return len(lv[models.LiveToday]) > 0
}

// CachedPriority remembers another LivePriority's answer per scope until the
// force-update counter moves or the local clock enters a new hour. The live
// refresh job bumps the counter whenever live data changes.
type CachedPriority struct {
	inner LivePriority
	force *signal.Counter
	loc   *time.Location
	now   func() time.Time

	mu   sync.Mutex
	memo map[string]priorityMemo
}

type priorityMemo struct {
	gen  uint64
	hour string
	val  bool
}

// NewCachedPriority wraps inner. A nil force counter leaves only the hourly
// expiry.
func NewCachedPriority(inner LivePriority, force *signal.Counter, loc *time.Location) *CachedPriority {
	if loc == nil {
		loc = time.UTC
	}
	return &CachedPriority{
		inner: inner,
		force: force,
		loc:   loc,
		now:   time.Now,
		memo:  make(map[string]priorityMemo),
	}
}

// Prioritised implements LivePriority.
func (p *CachedPriority) Prioritised(ctx context.Context, scope string) bool {
	var gen uint64
	if p.force != nil {
		gen = p.force.Value()
	}
	hour := p.now().In(p.loc).Format("2006010215")

	p.mu.Lock()
	m, ok := p.memo[scope]
	p.mu.Unlock()
	if ok && m.gen == gen && m.hour == hour {
		return m.val
	}

	val := p.inner.Prioritised(ctx, scope)
	p.mu.Lock()
	p.memo[scope] = priorityMemo{gen: gen, hour: hour, val: val}
	p.mu.Unlock()
	return val
}

// staticPriority is a fixed LivePriority.
type staticPriority bool

func (p staticPriority) Prioritised(context.Context, string) bool { return bool(p) }

// Never is a LivePriority that never prioritises live data.
var Never LivePriority = staticPriority(false)

// Always is a LivePriority that always prioritises live data.
var Always LivePriority = staticPriority(true)
