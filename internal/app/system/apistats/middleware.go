// Package apistats provides middleware for tracking per-endpoint request statistics.
package apistats

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/stratachart/internal/app/store/apistats"
	"go.uber.org/zap"
)

// Sink persists one request's statistics.
type Sink interface {
	Record(ctx context.Context, statType apistats.StatType, durationMs int64, isError bool) error
}

// Recorder records request statistics asynchronously so responses are never
// held up by the stats write.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration
}

// NewRecorder creates a new API stats recorder.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger, timeout: 5 * time.Second}
}

// Record records a single request's statistics in the background.
func (r *Recorder) Record(statType apistats.StatType, durationMs int64, isError bool) {
	go r.record(statType, durationMs, isError)
}

func (r *Recorder) record(statType apistats.StatType, durationMs int64, isError bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.Record(ctx, statType, durationMs, isError); err != nil {
		r.logger.Error("failed to record API stats",
			zap.String("stat_type", string(statType)),
			zap.Int64("duration_ms", durationMs),
			zap.Error(err),
		)
	}
}

// Middleware returns HTTP middleware that records statistics for statType.
// If recorder is nil, stats recording is skipped (useful for testing).
func Middleware(recorder *Recorder, statType apistats.StatType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			recorder.Record(statType, time.Since(start).Milliseconds(), wrapped.statusCode >= 400)
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
