package apistats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/stratachart/internal/app/store/apistats"
	"go.uber.org/zap"
)

type recorded struct {
	stat  apistats.StatType
	isErr bool
}

type chanSink chan recorded

func (c chanSink) Record(_ context.Context, stat apistats.StatType, _ int64, isErr bool) error {
	c <- recorded{stat, isErr}
	return nil
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"client error", http.StatusBadRequest, true},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := make(chanSink, 1)
			mw := Middleware(NewRecorder(sink, zap.NewNop()), apistats.StatTypeChartRender)
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/domestic", nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}

			select {
			case got := <-sink:
				if got.stat != apistats.StatTypeChartRender || got.isErr != tt.wantErr {
					t.Errorf("recorded %+v, want error=%v", got, tt.wantErr)
				}
			case <-time.After(time.Second):
				t.Fatal("no stats recorded")
			}
		})
	}
}

func TestMiddleware_NilRecorder(t *testing.T) {
	called := false
	h := Middleware(nil, apistats.StatTypeLiveIngest)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/live", nil))
	if !called {
		t.Error("next handler not called")
	}
}
