// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATACHART"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, default_locale, etc.
//   - Environment variables: STRATACHART_MONGO_URI, STRATACHART_DEFAULT_LOCALE, etc.
//   - Command-line flags: --mongo_uri, --default_locale, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratachart", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratachart-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Ingestion API (Bearer token auth)
	{Name: "api_key", Default: "", Desc: "API key for the ingestion API (leave empty to disable the /api routes)"},
	{Name: "api_cors_origins", Default: "", Desc: "Comma-separated origins allowed to call /api (blank allows any)"},

	// Chart presentation
	{Name: "default_locale", Default: "ko", Desc: "Locale used when a request matches none of the embedded dictionaries"},
	{Name: "timezone", Default: "Asia/Seoul", Desc: "IANA timezone for day and hour boundaries"},
	{Name: "data_source_url", Default: "https://www.kdca.go.kr", Desc: "Link shown with the data source attribution"},

	// Live chart
	{Name: "live_chart_enabled", Default: true, Desc: "Prioritise the live chart when today's live data exists"},
	{Name: "live_chart_from_hour", Default: 9, Desc: "Local hour (0-23) from which the live chart can be prioritised"},

	// Background jobs
	{Name: "live_refresh_interval", Default: "1m", Desc: "How often live writes are polled to refresh option menus"},
	{Name: "history_pack_interval", Default: "10m", Desc: "How often packed all-time series are rebuilt"},

	// Timeouts
	{Name: "chart_fetch_timeout", Default: "60s", Desc: "Timeout for one historical batch fetch"},
	{Name: "render_timeout", Default: "15s", Desc: "Timeout for one chart render request"},

	// API stats configuration
	{Name: "api_stats_bucket", Default: "1h", Desc: "API stats bucket duration (e.g., '1m', '15m', '1h', '24h')"},
	{Name: "api_stats_retention", Default: "720h", Desc: "How long API stats buckets are kept"},
	{Name: "ingest_ledger_retention", Default: "168h", Desc: "How long failed ingestion requests are kept"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATACHART_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 720*time.Hour),

		CSRFKey:        appValues.String("csrf_key"),
		APIKey:         appValues.String("api_key"),
		APICORSOrigins: splitList(appValues.String("api_cors_origins")),

		DefaultLocale: appValues.String("default_locale"),
		Timezone:      appValues.String("timezone"),
		DataSourceURL: appValues.String("data_source_url"),

		LiveChartEnabled:  appValues.Bool("live_chart_enabled"),
		LiveChartFromHour: appValues.Int("live_chart_from_hour"),

		LiveRefreshInterval: appValues.Duration("live_refresh_interval", time.Minute),
		HistoryPackInterval: appValues.Duration("history_pack_interval", 10*time.Minute),

		ChartFetchTimeout: appValues.Duration("chart_fetch_timeout", 60*time.Second),
		RenderTimeout:     appValues.Duration("render_timeout", 15*time.Second),

		APIStatsBucket:    appValues.Duration("api_stats_bucket", time.Hour),
		APIStatsRetention: appValues.Duration("api_stats_retention", 720*time.Hour),
		LedgerRetention:   appValues.Duration("ingest_ledger_retention", 168*time.Hour),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	var problems []error
	if _, err := language.Parse(appCfg.DefaultLocale); err != nil {
		problems = append(problems, fmt.Errorf("default_locale %q: %w", appCfg.DefaultLocale, err))
	}
	if _, err := time.LoadLocation(appCfg.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("timezone %q: %w", appCfg.Timezone, err))
	}
	if appCfg.LiveChartFromHour < 0 || appCfg.LiveChartFromHour > 23 {
		problems = append(problems, fmt.Errorf("live_chart_from_hour must be 0-23, got %d", appCfg.LiveChartFromHour))
	}
	positive := map[string]time.Duration{
		"live_refresh_interval":   appCfg.LiveRefreshInterval,
		"history_pack_interval":   appCfg.HistoryPackInterval,
		"chart_fetch_timeout":     appCfg.ChartFetchTimeout,
		"render_timeout":          appCfg.RenderTimeout,
		"api_stats_bucket":        appCfg.APIStatsBucket,
		"api_stats_retention":     appCfg.APIStatsRetention,
		"ingest_ledger_retention": appCfg.LedgerRetention,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			problems = append(problems, fmt.Errorf("%s must be positive, got %s", name, positive[name]))
		}
	}
	if appCfg.APIKey == "" {
		logger.Warn("api_key is empty; ingestion API is disabled")
	}

	if err := errors.Join(problems...); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
