// internal/app/system/ledger/middleware.go
package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	ledgerstore "github.com/dalemusser/stratachart/internal/app/store/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ctxKey is the context key type for ledger data.
type ctxKey int

const ctxKeyEntry ctxKey = iota

// RequestIDHeader carries the ledger request id back to the caller so a feed
// operator can look up the failure.
const RequestIDHeader = "X-Ledger-Request-ID"

// Sink persists ledger entries.
type Sink interface {
	Create(ctx context.Context, entry ledgerstore.Entry) error
}

// Config holds configuration for the ledger middleware.
type Config struct {
	// Sink persists entries.
	Sink Sink

	// Logger for logging errors.
	Logger *zap.Logger

	// MaxBodyPreview is the maximum number of bytes captured from the request
	// body. Set to 0 to disable body preview capture.
	MaxBodyPreview int

	// OnlyErrors records only requests answered with status >= 400.
	OnlyErrors bool

	// StoreTimeout bounds one async write. Zero means 5s.
	StoreTimeout time.Duration
}

// DefaultConfig returns a Config that records failed requests only.
func DefaultConfig(sink Sink, logger *zap.Logger) Config {
	return Config{
		Sink:           sink,
		Logger:         logger,
		MaxBodyPreview: 500,
		OnlyErrors:     true,
		StoreTimeout:   5 * time.Second,
	}
}

// Middleware returns HTTP middleware that logs requests to the ledger.
// A nil Sink disables it.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return func(next http.Handler) http.Handler {
		if cfg.Sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()
			startTime := time.Now()

			// Capture request body if needed
			var bodyPreview, bodyHash string
			var bodySize int64
			if cfg.MaxBodyPreview > 0 && r.Body != nil && r.ContentLength != 0 {
				body, err := io.ReadAll(r.Body)
				if err == nil {
					bodySize = int64(len(body))
					if len(body) > 0 {
						hash := sha256.Sum256(body)
						bodyHash = hex.EncodeToString(hash[:])[:8]

						preview := string(body)
						if len(preview) > cfg.MaxBodyPreview {
							preview = preview[:cfg.MaxBodyPreview] + "..."
						}
						bodyPreview = preview
					}
					// Restore body for handler
					r.Body = io.NopCloser(bytes.NewReader(body))
				}
			}

			entry := &ledgerstore.Entry{
				RequestID:          requestID,
				ClientRequestID:    r.Header.Get("X-Request-ID"),
				Method:             r.Method,
				Path:               r.URL.Path,
				Query:              r.URL.RawQuery,
				RemoteIP:           extractIP(r),
				RequestBodySize:    bodySize,
				RequestBodyHash:    bodyHash,
				RequestBodyPreview: bodyPreview,
				StartedAt:          startTime.UTC(),
			}
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyEntry, entry))

			w.Header().Set(RequestIDHeader, requestID)
			wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if cfg.OnlyErrors && wrapped.statusCode < 400 {
				return
			}
			entry.StatusCode = wrapped.statusCode
			entry.DurationMs = float64(time.Since(startTime).Microseconds()) / 1000.0
			if entry.ErrorClass == "" && wrapped.statusCode >= 400 {
				entry.ErrorClass = classify(wrapped.statusCode)
			}

			// Store entry asynchronously to not block response
			e := *entry
			go func() {
				storeCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
				defer cancel()
				if err := cfg.Sink.Create(storeCtx, e); err != nil {
					cfg.Logger.Error("failed to store ledger entry",
						zap.String("request_id", e.RequestID),
						zap.Error(err))
				}
			}()
		})
	}
}

// classify maps a status code to an error class.
func classify(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "validation"
	case status == http.StatusUnauthorized:
		return "auth"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusRequestEntityTooLarge:
		return "too_large"
	case status >= 500:
		return "internal"
	}
	return "client_error"
}

// responseWrapper wraps http.ResponseWriter to capture the status code.
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// extractIP extracts the client IP from the request.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// SetError records why a request failed. Outside the middleware it is a no-op.
func SetError(ctx context.Context, class, message string) {
	entry, ok := ctx.Value(ctxKeyEntry).(*ledgerstore.Entry)
	if !ok {
		return
	}
	if class != "" {
		entry.ErrorClass = class
	}
	entry.ErrorMessage = message
}

// GetRequestID returns the ledger request id for the current request.
func GetRequestID(ctx context.Context) string {
	entry, ok := ctx.Value(ctxKeyEntry).(*ledgerstore.Entry)
	if !ok {
		return ""
	}
	return entry.RequestID
}
