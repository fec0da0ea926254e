// Package charts serves the chart menus and chart payloads consumed by the
// dashboard renderer, and remembers each viewer's choices in the session.
//
// Endpoints:
//   - GET  /charts/{scope}/menu       - statistic tabs and resolved sub-option menu
//   - GET  /charts/{scope}            - chart payloads for the current view mode
//   - POST /charts/{scope}/selection  - remember a selection for the scope
//   - POST /charts/mode               - remember the view mode and locale
//
// City scopes are addressed as /charts/city/{city}.
package charts

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	errorsfeature "github.com/dalemusser/stratachart/internal/app/features/errors"
	"github.com/dalemusser/stratachart/internal/app/system/auth"
	"github.com/dalemusser/stratachart/internal/app/system/chartcache"
	"github.com/dalemusser/stratachart/internal/app/system/chartopts"
	"github.com/dalemusser/stratachart/internal/app/system/chartview"
	"github.com/dalemusser/stratachart/internal/app/system/jsonutil"
	"github.com/dalemusser/stratachart/internal/app/system/series"
	"github.com/dalemusser/stratachart/internal/app/system/timeouts"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// Renderer is the chart view controller.
type Renderer interface {
	Resolve(ctx context.Context, scope, locale string, main models.MainOption, values map[models.SubOption]string) (*chartopts.Catalog, chartopts.Resolution, error)
	Render(ctx context.Context, req chartview.Request) (chartview.Result, error)
	InitialMode(ctx context.Context, scope string) models.ViewMode
}

// LocaleMatcher picks the supported locale for a request.
type LocaleMatcher interface {
	Match(explicit, acceptLanguage string) string
}

// Handler serves the chart endpoints.
type Handler struct {
	charts   Renderer
	locales  LocaleMatcher
	sessions *auth.SessionManager
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a charts handler.
func NewHandler(charts Renderer, locales LocaleMatcher, sessions *auth.SessionManager, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		charts:   charts,
		locales:  locales,
		sessions: sessions,
		errLog:   errLog,
		logger:   logger,
	}
}

// MenuResponse is the body of GET /charts/{scope}/menu.
type MenuResponse struct {
	Scope       string                 `json:"scope"`
	Locale      string                 `json:"locale"`
	MainOptions []chartopts.MainChoice `json:"mainOptions"`
	chartopts.Resolution
}

// ChartsResponse is the body of GET /charts/{scope}.
type ChartsResponse struct {
	Scope  string `json:"scope"`
	Locale string `json:"locale"`
	chartview.Result
}

// Menu handles GET /charts/{scope}/menu.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeParam(r)
	if !ok {
		jsonutil.NotFound(w, "unknown scope")
		return
	}
	prefs := h.sessions.LoadPrefs(r)
	locale := h.locale(r, prefs)
	sel := h.selection(r, scope)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "chart menu")
	defer cancel()

	cat, res, err := h.charts.Resolve(ctx, scope, locale, sel.Main, sel.Values)
	if err != nil {
		h.fail(w, r, scope, err)
		return
	}

	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	jsonutil.OK(w, MenuResponse{
		Scope:       scope,
		Locale:      locale,
		MainOptions: cat.MainOptions(),
		Resolution:  res,
	})
}

// Charts handles GET /charts/{scope}.
//
// Query parameters: main, type, range, compare, mode, invalidate, lang. Absent
// selection parameters fall back to the selection stored for the scope;
// an absent mode falls back to the stored mode, then to the initial mode.
func (h *Handler) Charts(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeParam(r)
	if !ok {
		jsonutil.NotFound(w, "unknown scope")
		return
	}
	q := r.URL.Query()
	prefs := h.sessions.LoadPrefs(r)

	mode := prefs.Mode
	if raw := q.Get("mode"); raw != "" {
		m, ok := models.ParseViewMode(raw)
		if !ok {
			jsonutil.BadRequest(w, "unknown mode "+strconv.Quote(raw))
			return
		}
		mode = m
	}
	invalidate := false
	if raw := q.Get("invalidate"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			jsonutil.BadRequest(w, "invalidate must be a boolean")
			return
		}
		invalidate = v
	}

	locale := h.locale(r, prefs)
	sel := h.selection(r, scope)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Render(), h.logger, "chart render")
	defer cancel()

	res, err := h.charts.Render(ctx, chartview.Request{
		Scope:      scope,
		Locale:     locale,
		Mode:       mode,
		Main:       sel.Main,
		Values:     sel.Values,
		Invalidate: invalidate,
	})
	if err != nil {
		h.fail(w, r, scope, err)
		return
	}
	jsonutil.OK(w, ChartsResponse{Scope: scope, Locale: locale, Result: res})
}

// SaveSelection handles POST /charts/{scope}/selection.
//
// Request body:
//
//	{"main": "confirmed", "values": {"type": "daily", "range": "oneMonth"}}
//
// The selection is resolved before it is stored, so only allowed values are
// remembered. The response is the resolved menu.
func (h *Handler) SaveSelection(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeParam(r)
	if !ok {
		jsonutil.NotFound(w, "unknown scope")
		return
	}
	var in auth.Selection
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	prefs := h.sessions.LoadPrefs(r)
	locale := h.locale(r, prefs)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "chart selection")
	defer cancel()

	cat, res, err := h.charts.Resolve(ctx, scope, locale, in.Main, in.Values)
	if err != nil {
		h.fail(w, r, scope, err)
		return
	}
	stored := auth.Selection{Main: res.Main, Values: res.Selection.Values}
	if err := h.sessions.SaveSelection(w, r, scope, stored); err != nil {
		h.errLog.Log(r, "failed to save chart selection", err)
		jsonutil.InternalError(w, "failed to save selection")
		return
	}
	jsonutil.OK(w, MenuResponse{Scope: scope, Locale: locale, MainOptions: cat.MainOptions(), Resolution: res})
}

// ModeRequest is the body of POST /charts/mode.
type ModeRequest struct {
	Mode   models.ViewMode `json:"mode"`
	Locale string          `json:"locale,omitempty"`
}

// SaveMode handles POST /charts/mode.
func (h *Handler) SaveMode(w http.ResponseWriter, r *http.Request) {
	var in ModeRequest
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	mode, ok := models.ParseViewMode(string(in.Mode))
	if !ok {
		jsonutil.ValidationError(w, map[string]string{"mode": "must be DEFAULT or EXPANDED"})
		return
	}
	prefs := auth.Prefs{Mode: mode}
	if in.Locale != "" {
		prefs.Locale = h.locales.Match(in.Locale, "")
	}
	if err := h.sessions.SavePrefs(w, r, prefs); err != nil {
		h.errLog.Log(r, "failed to save chart prefs", err)
		jsonutil.InternalError(w, "failed to save mode")
		return
	}
	jsonutil.OK(w, map[string]string{"mode": string(mode), "locale": prefs.Locale})
}

// locale prefers ?lang=, then the stored locale, then Accept-Language.
func (h *Handler) locale(r *http.Request, prefs auth.Prefs) string {
	explicit := r.URL.Query().Get("lang")
	if explicit == "" {
		explicit = prefs.Locale
	}
	return h.locales.Match(explicit, r.Header.Get("Accept-Language"))
}

// selection starts from the stored selection for scope and overlays any
// main/type/range/compare given in the query. Resolution later replaces
// values the chosen statistic does not offer.
func (h *Handler) selection(r *http.Request, scope string) auth.Selection {
	sel := auth.Selection{Values: map[models.SubOption]string{}}
	if stored, ok := h.sessions.LoadSelection(r, scope); ok {
		sel.Main = stored.Main
		for opt, v := range stored.Values {
			sel.Values[opt] = v
		}
	}

	q := r.URL.Query()
	if m := q.Get("main"); m != "" {
		sel.Main = models.MainOption(m)
	}
	for _, opt := range models.AllSubOptions {
		if v := q.Get(string(opt)); v != "" {
			sel.Values[opt] = v
		}
	}
	return sel
}

// fail maps render errors to statuses. Unexpected failures are logged and
// reported without internal detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, scope string, err error) {
	switch {
	case errors.Is(err, chartopts.ErrUnknownMainOption),
		errors.Is(err, chartview.ErrUnknownMode),
		errors.Is(err, series.ErrUnknownType),
		errors.Is(err, series.ErrUnknownRange):
		jsonutil.BadRequest(w, err.Error())
	case errors.Is(err, chartview.ErrLiveUnavailable):
		jsonutil.NotFound(w, "live data unavailable")
	case errors.Is(err, chartcache.ErrPartialBatch), errors.Is(err, chartcache.ErrNilBatch):
		h.errLog.LogWithFields(r, "history returned an incomplete batch", err, zap.String("scope", scope))
		jsonutil.Error(w, http.StatusBadGateway, "historical data incomplete")
	case errors.Is(err, context.DeadlineExceeded):
		h.errLog.LogWithFields(r, "chart render timed out", err, zap.String("scope", scope))
		jsonutil.Error(w, http.StatusGatewayTimeout, "chart render timed out")
	default:
		h.errLog.LogWithFields(r, "chart render failed", err, zap.String("scope", scope))
		jsonutil.InternalError(w, "chart render failed")
	}
}

func scopeParam(r *http.Request) (string, bool) {
	scope := chi.URLParam(r, "scope")
	if city := chi.URLParam(r, "city"); city != "" {
		scope = models.CityScope(city)
	}
	return scope, models.ValidScope(scope)
}
