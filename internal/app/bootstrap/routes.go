// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"strings"
	"time"

	chartsfeature "github.com/dalemusser/stratachart/internal/app/features/charts"
	errorsfeature "github.com/dalemusser/stratachart/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratachart/internal/app/features/health"
	ingestfeature "github.com/dalemusser/stratachart/internal/app/features/ingest"
	"github.com/dalemusser/stratachart/internal/app/system/apistats"
	"github.com/dalemusser/stratachart/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// requestTimeout bounds every request. Chart renders carry their own,
// shorter deadline from timeouts.Render.
const requestTimeout = 30 * time.Second

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed.
//
// # Mixed Authentication Routes
//
// The router serves two audiences:
//   - /charts: browser routes; session cookie for the viewer's selection + CSRF
//   - /api: ingestion routes; API key auth + no CSRF + API CORS; failures
//     are written to the ingest ledger
//
// /health, /ready and /livez are unauthenticated.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("chart services not initialized; Startup must run first")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Create error logger and JSON error responses for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler(logger)

	// Per-endpoint request statistics.
	apiStatsRecorder := apistats.NewRecorder(svc.apiStats, logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(requestTimeout))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// CSRF protection with path-based exemption for the ingestion API.
	// Cookie name is "stratachart_csrf" to avoid collisions with other services
	// on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratachart_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(errorsHandler.CSRFFailure)),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	trustedOrigins := []string{
		"localhost:8080",
		"localhost:3000",
		"127.0.0.1:8080",
		"127.0.0.1:3000",
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins(trustedOrigins))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	// Skip CSRF for the ingestion API (API key auth).
	csrfMiddleware := func(next http.Handler) http.Handler {
		csrfHandler := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if csrfExempt(req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			csrfHandler.ServeHTTP(w, req)
		})
	}
	r.Use(csrfMiddleware)

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(healthfeature.MongoPinger(deps.MongoClient), svc.cache, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Charts and option menus (browser)
	chartsHandler := chartsfeature.NewHandler(svc.charts, svc.labels, sessionMgr, errLog, logger)
	r.Mount("/charts", chartsfeature.Routes(chartsHandler, apiStatsRecorder))

	// Ingestion API (only mounted when an API key is configured)
	if appCfg.APIKey != "" {
		ingestHandler := ingestfeature.NewHandler(ingestfeature.Deps{
			History: svc.history,
			Live:    svc.live,
			Cache:   svc.cache,
			Jobs:    taskRunner,
			Stats:   svc.apiStats,
			Ledger:  svc.ledger,
		}, errLog, logger)
		r.Mount("/api", ingestfeature.Routes(ingestHandler, apiStatsRecorder, svc.ledger, appCfg.APIKey, appCfg.APICORSOrigins, logger))
	} else {
		logger.Info("ingestion API not mounted (api_key is empty)")
	}

	// JSON 404/405 for unmatched routes
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}

// csrfExempt reports whether a path bypasses CSRF validation.
func csrfExempt(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
