package ingest

import (
	"net/http"

	apistatsstore "github.com/dalemusser/stratachart/internal/app/store/apistats"
	"github.com/dalemusser/stratachart/internal/app/system/apicors"
	"github.com/dalemusser/stratachart/internal/app/system/apistats"
	"github.com/dalemusser/stratachart/internal/app/system/auth"
	"github.com/dalemusser/stratachart/internal/app/system/ledger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes returns the ingestion router, meant to be mounted at /api.
//
// Authentication is via API key (Bearer token in Authorization header).
// CORS allows any origin unless corsOrigins pins a list. Failed requests,
// including rejected API keys, are written to the request ledger when
// ledgerSink is set. recorder and ledgerSink may be nil.
func Routes(h *Handler, recorder *apistats.Recorder, ledgerSink ledger.Sink, apiKey string, corsOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(apicors.For(corsOrigins))
	r.Use(ledger.Middleware(ledger.DefaultConfig(ledgerSink, logger)))
	r.Use(auth.APIKeyAuth(apiKey, logger))

	r.With(apistats.Middleware(recorder, apistatsstore.StatTypeHistoryIngest)).Post("/history", h.RecordHistory)
	r.Post("/history/pack", h.Pack)
	r.With(apistats.Middleware(recorder, apistatsstore.StatTypeLiveIngest)).Post("/live", h.RecordLive)
	r.With(apistats.Middleware(recorder, apistatsstore.StatTypeCacheInvalidate)).Post("/charts/invalidate", h.Invalidate)
	r.Get("/stats", h.Stats)
	r.Get("/errors", h.Errors)
	return r
}
