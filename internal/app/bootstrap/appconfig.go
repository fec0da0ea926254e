// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration (ports, TLS, logging, CORS,
// body limits), which lives in config.CoreConfig.
//
// The struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown should live here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session cookie holding the viewer's chart selection and view mode
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: stratachart-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 720h)

	// CSRF protection for the browser POST endpoints
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Ingestion API. When APIKey is empty the /api routes are not mounted.
	APIKey         string
	APICORSOrigins []string // Empty allows any origin

	// Chart presentation
	DefaultLocale string // Fallback locale tag (e.g., "ko")
	Timezone      string // IANA name used for day and hour boundaries
	DataSourceURL string // Link attached to the data source attribution

	// Live chart prioritisation
	LiveChartEnabled  bool
	LiveChartFromHour int // Local hour from which the live chart may lead

	// Background jobs
	LiveRefreshInterval time.Duration
	HistoryPackInterval time.Duration

	// Timeouts
	ChartFetchTimeout time.Duration // One historical batch fetch
	RenderTimeout     time.Duration // One chart render request

	// API stats and the failed-request ledger
	APIStatsBucket    time.Duration
	APIStatsRetention time.Duration
	LedgerRetention   time.Duration
}

// Location loads the configured timezone. ValidateConfig has already checked
// it, so the UTC fallback is only reached for hand-built configs.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
