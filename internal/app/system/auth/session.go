// Package auth holds the request-level guards of the service: the signed
// cookie session that remembers a viewer's chart choices, and API key
// authentication for ingestion clients.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Session error classification for logging and monitoring.
type sessionErrorType int

const (
	sessionErrUnknown   sessionErrorType = iota
	sessionErrExpired                    // timestamp expired - normal
	sessionErrTampered                   // MAC invalid - potential attack
	sessionErrCorrupted                  // decode/decrypt failed - corruption or key rotation
	sessionErrBackend                    // store/backend failure
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	viewModeKey        = "view_mode"
	localeKey          = "locale"
	selectionKeyPrefix = "selection:"
)

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager - injectable session management                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager encapsulates session store and configuration.
// Use NewSessionManager to create an instance.
type SessionManager struct {
	store  *sessions.CookieStore
	logger *zap.Logger
	name   string
}

// NewSessionManager creates a new SessionManager with the provided configuration.
//
// Parameters:
//   - sessionKey: signing key for cookies (must be ≥32 chars in production)
//   - name: session cookie name (defaults to "stratachart-session" if empty)
//   - domain: cookie domain (empty means current host)
//   - maxAge: session cookie lifetime (e.g., 30*24*time.Hour)
//   - secure: if true, cookies are Secure (for HTTPS production)
//   - logger: zap logger for session error logging
//
// Returns an error if sessionKey is empty or too weak for production mode.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}

	// Check for weak/default keys
	isWeak := len(sessionKey) < 32 || isDefaultKey(sessionKey)

	if secure {
		if isWeak {
			return nil, &SessionConfigError{
				Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
			}
		}
	} else if isWeak {
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = "stratachart-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain))

	return &SessionManager{
		store:  store,
		logger: logger,
		name:   name,
	}, nil
}

// SessionConfigError is returned when session configuration is invalid.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string {
	return e.Message
}

// SessionName returns the configured session cookie name.
func (sm *SessionManager) SessionName() string {
	return sm.name
}

// GetSession retrieves the session for the request. A cookie that cannot be
// decoded yields a fresh session; the failure is logged by category.
func (sm *SessionManager) GetSession(r *http.Request) *sessions.Session {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		errType, category := classifySessionError(err)
		fields := []zap.Field{zap.String("category", category), zap.String("path", r.URL.Path)}
		switch errType {
		case sessionErrExpired:
			sm.logger.Debug("session cookie expired", fields...)
		case sessionErrTampered:
			sm.logger.Warn("session cookie failed MAC check", append(fields, zap.String("remote_addr", r.RemoteAddr))...)
		default:
			sm.logger.Info("session cookie unreadable", append(fields, zap.Error(err))...)
		}
		sess, _ = sm.store.New(r, sm.name)
	}
	return sess
}

/*─────────────────────────────────────────────────────────────────────────────*
| Chart preferences                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// Selection is the remembered chart choice for one scope.
type Selection struct {
	Main   models.MainOption           `json:"main"`
	Values map[models.SubOption]string `json:"values,omitempty"`
}

// Prefs are the chart preferences kept in the session.
type Prefs struct {
	Mode   models.ViewMode
	Locale string
}

// LoadPrefs reads the view mode and locale from the session. Unknown modes
// are dropped.
func (sm *SessionManager) LoadPrefs(r *http.Request) Prefs {
	sess := sm.GetSession(r)
	p := Prefs{Locale: getString(sess, localeKey)}
	if m, ok := models.ParseViewMode(getString(sess, viewModeKey)); ok {
		p.Mode = m
	}
	return p
}

// SavePrefs stores non-empty fields of p in the session.
func (sm *SessionManager) SavePrefs(w http.ResponseWriter, r *http.Request, p Prefs) error {
	sess := sm.GetSession(r)
	if p.Mode != "" {
		sess.Values[viewModeKey] = string(p.Mode)
	}
	if p.Locale != "" {
		sess.Values[localeKey] = p.Locale
	}
	return sess.Save(r, w)
}

// LoadSelection returns the remembered selection for scope, ok=false when
// none is stored or it cannot be read.
func (sm *SessionManager) LoadSelection(r *http.Request, scope string) (Selection, bool) {
	raw := getString(sm.GetSession(r), selectionKeyPrefix+scope)
	if raw == "" {
		return Selection{}, false
	}
	var sel Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		sm.logger.Debug("dropping unreadable chart selection", zap.String("scope", scope), zap.Error(err))
		return Selection{}, false
	}
	return sel, true
}

// SaveSelection remembers sel for scope.
func (sm *SessionManager) SaveSelection(w http.ResponseWriter, r *http.Request, scope string, sel Selection) error {
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	sess := sm.GetSession(r)
	sess.Values[selectionKeyPrefix+scope] = string(b)
	return sess.Save(r, w)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

// isDefaultKey checks if the session key appears to be a default/placeholder value.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	patterns := []string{
		"dev-only",
		"change-me",
		"placeholder",
		"default",
		"example",
		"insecure",
		"test-key",
		"secret123",
		"password",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// classifySessionError categorizes a session/cookie error for appropriate logging.
func classifySessionError(err error) (sessionErrorType, string) {
	if err == nil {
		return sessionErrUnknown, "none"
	}

	errStr := strings.ToLower(err.Error())

	if scErr, ok := err.(securecookie.Error); ok {
		if !scErr.IsDecode() {
			return sessionErrBackend, "backend"
		}

		switch {
		case strings.Contains(errStr, "expired timestamp"):
			return sessionErrExpired, "expired"
		case strings.Contains(errStr, "mac") || strings.Contains(errStr, "hash"):
			return sessionErrTampered, "mac_invalid"
		case strings.Contains(errStr, "decrypt"):
			return sessionErrCorrupted, "decrypt_failed"
		case strings.Contains(errStr, "base64") || strings.Contains(errStr, "decode"):
			return sessionErrCorrupted, "decode_failed"
		default:
			return sessionErrCorrupted, "decode_other"
		}
	}

	return sessionErrBackend, "unknown"
}
