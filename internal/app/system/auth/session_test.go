package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.uber.org/zap"
)

const testKey = "this-is-a-32-character-long-key!"

func TestNewSessionManager(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		sessionKey string
		secure     bool
		wantErr    bool
	}{
		{"valid key dev mode", testKey, false, false},
		{"valid key prod mode", testKey, true, false},
		{"empty key", "", false, true},
		{"weak key dev mode", "short", false, false}, // Warning but allowed in dev
		{"weak key prod mode", "short", true, true},
		{"default key prod mode", "dev-only-session-key-not-for-production", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSessionManager(tt.sessionKey, "test-session", "", time.Hour, tt.secure, logger)

			if tt.wantErr {
				if err == nil {
					t.Error("NewSessionManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("NewSessionManager() error = %v", err)
			}
			if sm == nil {
				t.Error("NewSessionManager() returned nil")
			}
		})
	}
}

func TestSessionManager_SessionName(t *testing.T) {
	logger := zap.NewNop()

	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, logger)
	if sm.SessionName() != "stratachart-session" {
		t.Errorf("SessionName() = %q, want %q", sm.SessionName(), "stratachart-session")
	}

	sm2, _ := NewSessionManager(testKey, "custom-session", "", time.Hour, false, logger)
	if sm2.SessionName() != "custom-session" {
		t.Errorf("SessionName() = %q, want %q", sm2.SessionName(), "custom-session")
	}
}

func TestIsDefaultKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"dev-only-key", true},
		{"change-me-please", true},
		{"placeholder-key", true},
		{"default-session-key", true},
		{"example-key-here", true},
		{"insecure-dev-key", true},
		{"test-key-123", true},
		{"secret123", true},
		{"password123", true},
		{"xK8nP2mQ9rT5vW7yB3cF6hJ0lN4sU1wZ", false},
		{"secure-random-key-that-is-long-enough", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := isDefaultKey(tt.key); got != tt.want {
				t.Errorf("isDefaultKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestClassifySessionError_Types(t *testing.T) {
	if errType, _ := classifySessionError(nil); errType != sessionErrUnknown {
		t.Errorf("classifySessionError(nil) type = %v, want %v", errType, sessionErrUnknown)
	}

	tests := []struct {
		name     string
		errMsg   string
		wantType sessionErrorType
	}{
		{"expired", "expired timestamp", sessionErrExpired},
		{"mac invalid", "mac validation failed", sessionErrTampered},
		{"hash invalid", "hash mismatch", sessionErrTampered},
		{"decrypt failed", "decrypt error", sessionErrCorrupted},
		{"base64 error", "base64 decode failed", sessionErrCorrupted},
		{"decode error", "decode failed", sessionErrCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mockSecureCookieError{msg: tt.errMsg, isDecode: true}
			if errType, _ := classifySessionError(err); errType != tt.wantType {
				t.Errorf("classifySessionError() type = %v, want %v", errType, tt.wantType)
			}
		})
	}
}

func TestClassifySessionError_Backend(t *testing.T) {
	err := mockSecureCookieError{msg: "backend error", isDecode: false}
	errType, category := classifySessionError(err)
	if errType != sessionErrBackend {
		t.Errorf("classifySessionError() type = %v, want %v", errType, sessionErrBackend)
	}
	if category != "backend" {
		t.Errorf("classifySessionError() category = %q, want %q", category, "backend")
	}
}

// mockSecureCookieError implements securecookie.Error for testing
type mockSecureCookieError struct {
	msg      string
	isDecode bool
}

func (e mockSecureCookieError) Error() string    { return e.msg }
func (e mockSecureCookieError) IsDecode() bool   { return e.isDecode }
func (e mockSecureCookieError) IsUsage() bool    { return false }
func (e mockSecureCookieError) IsInternal() bool { return false }
func (e mockSecureCookieError) Cause() error     { return nil }

func TestSessionConfigError(t *testing.T) {
	err := &SessionConfigError{Message: "test error"}
	if err.Error() != "test error" {
		t.Errorf("SessionConfigError.Error() = %q, want %q", err.Error(), "test error")
	}
}

// carryCookies copies the Set-Cookie headers of rec onto a new request.
func carryCookies(rec *httptest.ResponseRecorder, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionManager_PrefsRoundTrip(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	empty := sm.LoadPrefs(httptest.NewRequest(http.MethodGet, "/", nil))
	if empty.Mode != "" || empty.Locale != "" {
		t.Fatalf("LoadPrefs() on fresh request = %+v, want zero", empty)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/charts/mode", nil)
	if err := sm.SavePrefs(rec, req, Prefs{Mode: models.ModeExpanded, Locale: "ko"}); err != nil {
		t.Fatalf("SavePrefs() error = %v", err)
	}

	got := sm.LoadPrefs(carryCookies(rec, "/charts/seoul"))
	if got.Mode != models.ModeExpanded || got.Locale != "ko" {
		t.Errorf("LoadPrefs() = %+v, want expanded/ko", got)
	}
}

func TestSessionManager_SelectionRoundTrip(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	if _, ok := sm.LoadSelection(httptest.NewRequest(http.MethodGet, "/", nil), "seoul"); ok {
		t.Fatal("LoadSelection() on fresh request reported a selection")
	}

	sel := Selection{
		Main:   models.MainConfirmed,
		Values: map[models.SubOption]string{models.SubType: models.TypeDaily},
	}
	rec := httptest.NewRecorder()
	if err := sm.SaveSelection(rec, httptest.NewRequest(http.MethodPost, "/", nil), "seoul", sel); err != nil {
		t.Fatalf("SaveSelection() error = %v", err)
	}

	req := carryCookies(rec, "/charts/seoul")
	got, ok := sm.LoadSelection(req, "seoul")
	if !ok {
		t.Fatal("LoadSelection() found nothing after save")
	}
	if got.Main != sel.Main || got.Values[models.SubType] != models.TypeDaily {
		t.Errorf("LoadSelection() = %+v, want %+v", got, sel)
	}
	if _, ok := sm.LoadSelection(req, "busan"); ok {
		t.Error("LoadSelection() leaked selection to another scope")
	}
}

func TestSessionManager_GetSession_BadCookie(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.SessionName(), Value: "not-a-valid-cookie"})
	sess := sm.GetSession(req)
	if sess == nil {
		t.Fatal("GetSession() returned nil session")
	}
	if !sess.IsNew {
		t.Error("GetSession() with bad cookie should return a new session")
	}
}
