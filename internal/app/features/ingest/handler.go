// Package ingest provides the API endpoints through which data feeds record
// finalized and live counters and signal that chart data has changed.
//
// Endpoints (API key protected):
//   - POST /api/history           - record daily cumulative values
//   - POST /api/live              - record an hourly live value
//   - POST /api/charts/invalidate - mark every cached chart batch stale
//   - POST /api/history/pack      - rebuild the compressed all-time series now
//   - GET  /api/stats             - per-endpoint request statistics
//   - GET  /api/errors            - recently failed ingestion requests
package ingest

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stratachart/internal/app/features/errors"
	apistatsstore "github.com/dalemusser/stratachart/internal/app/store/apistats"
	ledgerstore "github.com/dalemusser/stratachart/internal/app/store/ledger"
	"github.com/dalemusser/stratachart/internal/app/system/jsonutil"
	"github.com/dalemusser/stratachart/internal/app/system/ledger"
	"github.com/dalemusser/stratachart/internal/app/system/tasks"
	"github.com/dalemusser/stratachart/internal/app/system/timeouts"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.uber.org/zap"
)

// maxPoints bounds one history request.
const maxPoints = 1000

// HistoryRecorder stores daily cumulative values.
type HistoryRecorder interface {
	Record(ctx context.Context, scope string, stat models.MainOption, date time.Time, value int64) error
}

// LiveRecorder stores hourly live values.
type LiveRecorder interface {
	Record(ctx context.Context, scope string, at time.Time, value int64) error
}

// Invalidator is the chart cache.
type Invalidator interface {
	Invalidate() uint64
	Prune() int
}

// JobRunner runs a registered background job on demand.
type JobRunner interface {
	RunOnce(ctx context.Context, name string) error
}

// StatsReader reads request statistics.
type StatsReader interface {
	Summaries(ctx context.Context, from, to time.Time) ([]apistatsstore.Summary, error)
}

// LedgerReader reads failed ingestion requests.
type LedgerReader interface {
	Recent(ctx context.Context, path string, limit int) ([]ledgerstore.Entry, error)
	CountByClass(ctx context.Context, from, to time.Time) ([]ledgerstore.ClassCount, error)
}

// Handler handles ingestion requests.
type Handler struct {
	history HistoryRecorder
	live    LiveRecorder
	cache   Invalidator
	jobs    JobRunner
	stats   StatsReader
	ledger  LedgerReader
	errLog  *errorsfeature.ErrorLogger
	logger  *zap.Logger
	now     func() time.Time
}

// Deps bundles the collaborators of a Handler. Jobs, Stats and Ledger may be
// nil, which disables their endpoints.
type Deps struct {
	History HistoryRecorder
	Live    LiveRecorder
	Cache   Invalidator
	Jobs    JobRunner
	Stats   StatsReader
	Ledger  LedgerReader
}

// NewHandler creates a new ingest handler.
func NewHandler(deps Deps, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		history: deps.History,
		live:    deps.Live,
		cache:   deps.Cache,
		jobs:    deps.Jobs,
		stats:   deps.Stats,
		ledger:  deps.Ledger,
		errLog:  errLog,
		logger:  logger,
		now:     time.Now,
	}
}

// HistoryPoint is one daily cumulative value.
type HistoryPoint struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Value int64  `json:"value"`
}

// HistoryRequest is the body of POST /api/history.
type HistoryRequest struct {
	Scope  string            `json:"scope"`
	Stat   models.MainOption `json:"stat"`
	Points []HistoryPoint    `json:"points"`
}

// RecordHistory handles POST /api/history.
//
// Request body:
//
//	{
//	    "scope": "domestic",
//	    "stat": "confirmed",
//	    "points": [{"date": "2024-03-11", "value": 2281376}]
//	}
//
// Response (200 OK): {"recorded": 1}
//
// Cached charts are not touched; the pack job or an explicit invalidate
// makes new history visible.
func (h *Handler) RecordHistory(w http.ResponseWriter, r *http.Request) {
	var in HistoryRequest
	if err := jsonutil.Decode(r, &in); err != nil {
		ledger.SetError(r.Context(), "decode", err.Error())
		jsonutil.BadRequest(w, err.Error())
		return
	}

	fields := map[string]string{}
	checkScopeStat(fields, in.Scope, in.Stat)
	if len(in.Points) == 0 {
		fields["points"] = "required"
	} else if len(in.Points) > maxPoints {
		fields["points"] = "at most " + strconv.Itoa(maxPoints) + " per request"
	}
	dates := make([]time.Time, len(in.Points))
	for i, p := range in.Points {
		d, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			fields["points["+strconv.Itoa(i)+"].date"] = "must be YYYY-MM-DD"
			continue
		}
		if p.Value < 0 {
			fields["points["+strconv.Itoa(i)+"].value"] = "must not be negative"
		}
		dates[i] = d
	}
	if len(fields) > 0 {
		reject(w, r, fields)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.logger, "history ingest")
	defer cancel()

	for i, p := range in.Points {
		if err := h.history.Record(ctx, in.Scope, in.Stat, dates[i], p.Value); err != nil {
			h.errLog.LogWithFields(r, "failed to record history", err,
				zap.String("scope", in.Scope),
				zap.String("stat", string(in.Stat)),
				zap.String("date", p.Date),
			)
			ledger.SetError(r.Context(), "store", err.Error())
			jsonutil.InternalError(w, "failed to record history")
			return
		}
	}

	h.logger.Debug("history recorded",
		zap.String("scope", in.Scope),
		zap.String("stat", string(in.Stat)),
		zap.Int("points", len(in.Points)),
	)
	jsonutil.OK(w, map[string]int{"recorded": len(in.Points)})
}

// LiveRequest is the body of POST /api/live.
type LiveRequest struct {
	Scope string    `json:"scope"`
	At    time.Time `json:"at"` // RFC 3339
	Value int64     `json:"value"`
}

// RecordLive handles POST /api/live.
//
// Request body:
//
//	{"scope": "domestic", "at": "2024-03-12T14:00:00+09:00", "value": 1402}
//
// Samples more than an hour in the future are rejected.
func (h *Handler) RecordLive(w http.ResponseWriter, r *http.Request) {
	var in LiveRequest
	if err := jsonutil.Decode(r, &in); err != nil {
		ledger.SetError(r.Context(), "decode", err.Error())
		jsonutil.BadRequest(w, err.Error())
		return
	}

	fields := map[string]string{}
	if !models.ValidScope(in.Scope) {
		fields["scope"] = "must be domestic or city/<id>"
	}
	switch {
	case in.At.IsZero():
		fields["at"] = "required"
	case in.At.After(h.now().Add(time.Hour)):
		fields["at"] = "must not be in the future"
	}
	if in.Value < 0 {
		fields["value"] = "must not be negative"
	}
	if len(fields) > 0 {
		reject(w, r, fields)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "live ingest")
	defer cancel()

	if err := h.live.Record(ctx, in.Scope, in.At, in.Value); err != nil {
		h.errLog.LogWithFields(r, "failed to record live value", err, zap.String("scope", in.Scope))
		ledger.SetError(r.Context(), "store", err.Error())
		jsonutil.InternalError(w, "failed to record live value")
		return
	}
	jsonutil.OK(w, map[string]int{"recorded": 1})
}

// Invalidate handles POST /api/charts/invalidate. Every cached batch becomes
// stale; the stale entries are dropped right away.
//
// Response (200 OK): {"generation": 4, "pruned": 7}
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	g := h.cache.Invalidate()
	pruned := h.cache.Prune()
	h.logger.Info("chart cache invalidated via API",
		zap.Uint64("generation", g),
		zap.Int("pruned", pruned),
		zap.String("remote_addr", r.RemoteAddr),
	)
	jsonutil.OK(w, map[string]any{"generation": g, "pruned": pruned})
}

// Pack handles POST /api/history/pack. It runs the pack job synchronously.
func (h *Handler) Pack(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		jsonutil.NotFound(w, "pack job not configured")
		return
	}
	if err := h.jobs.RunOnce(r.Context(), tasks.HistoryPackJobName); err != nil {
		if errors.Is(err, tasks.ErrUnknownJob) {
			jsonutil.NotFound(w, "pack job not registered")
			return
		}
		h.errLog.Log(r, "history pack failed", err)
		jsonutil.InternalError(w, "history pack failed")
		return
	}
	jsonutil.OK(w, map[string]string{"status": "packed"})
}

// Stats handles GET /api/stats?hours=24.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		jsonutil.NotFound(w, "request statistics not configured")
		return
	}
	hours, ok := boundedInt(r.URL.Query().Get("hours"), 24, 24*31)
	if !ok {
		jsonutil.BadRequest(w, "hours must be between 1 and 744")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "api stats")
	defer cancel()

	to := h.now()
	sums, err := h.stats.Summaries(ctx, to.Add(-time.Duration(hours)*time.Hour), to)
	if err != nil {
		h.errLog.Log(r, "failed to read api stats", err)
		jsonutil.InternalError(w, "failed to read statistics")
		return
	}
	jsonutil.OK(w, map[string]any{"hours": hours, "endpoints": sums})
}

// Errors handles GET /api/errors?path=/api/history&limit=50&hours=24.
//
// Response (200 OK):
//
//	{"hours": 24, "classes": [{"error_class": "validation", "count": 3}], "entries": [...]}
func (h *Handler) Errors(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		jsonutil.NotFound(w, "request ledger not configured")
		return
	}
	q := r.URL.Query()
	limit, ok := boundedInt(q.Get("limit"), 50, 500)
	if !ok {
		jsonutil.BadRequest(w, "limit must be between 1 and 500")
		return
	}
	hours, ok := boundedInt(q.Get("hours"), 24, 24*31)
	if !ok {
		jsonutil.BadRequest(w, "hours must be between 1 and 744")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "ingest ledger")
	defer cancel()

	entries, err := h.ledger.Recent(ctx, q.Get("path"), limit)
	if err != nil {
		h.errLog.Log(r, "failed to read ingest ledger", err)
		jsonutil.InternalError(w, "failed to read ledger")
		return
	}
	to := h.now()
	classes, err := h.ledger.CountByClass(ctx, to.Add(-time.Duration(hours)*time.Hour), to)
	if err != nil {
		h.errLog.Log(r, "failed to count ingest ledger", err)
		jsonutil.InternalError(w, "failed to read ledger")
		return
	}
	jsonutil.OK(w, map[string]any{"hours": hours, "classes": classes, "entries": entries})
}

// reject answers 400 with per-field messages and notes the rejected fields
// in the request ledger.
func reject(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	ledger.SetError(r.Context(), "validation", strings.Join(keys, ","))
	jsonutil.ValidationError(w, fields)
}

// boundedInt parses an optional positive query value no larger than max.
func boundedInt(raw string, def, max int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return 0, false
	}
	return n, true
}

func checkScopeStat(fields map[string]string, scope string, stat models.MainOption) {
	if !models.ValidScope(scope) {
		fields["scope"] = "must be domestic or city/<id>"
	}
	if !models.IsValidMainOption(string(stat)) {
		fields["stat"] = "unknown statistic"
	}
}
