// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/crewhub/internal/app/realtime"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CrewHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, presence_away_threshold, etc.
//   - Environment variables: CREWHUB_MONGO_URI, CREWHUB_PRESENCE_AWAY_THRESHOLD, etc.
//   - Command-line flags: --mongo_uri, --presence_away_threshold, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "crewhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Presence tracking
	{Name: "presence_away_threshold", Default: "5m", Desc: "Inactivity before a user is marked away (e.g., 5m, 90s)"},
	{Name: "presence_sweep_interval", Default: "1m", Desc: "How often the away sweep runs"},

	// Location sharing
	{Name: "location_flush_interval", Default: "30s", Desc: "How often dirty locations are persisted to MongoDB"},
	{Name: "location_epsilon", Default: "0.0001", Desc: "Minimum movement (degrees) before a location update is broadcast"},

	// Outbound event coalescing
	{Name: "debounce_window", Default: "100ms", Desc: "Quiet period before a pending event batch is flushed"},

	// WebSocket transport
	{Name: "ws_read_limit", Default: 1024, Desc: "Max inbound WebSocket message size in bytes"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, CREWHUB_* for app), and
// command-line flags, merging with precedence flags > env > files >
// defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CREWHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	epsilon := realtime.DefaultEpsilon
	if raw := appValues.String("location_epsilon"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			epsilon = v
		} else {
			logger.Warn("ignoring invalid location_epsilon",
				zap.String("value", raw))
		}
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		PresenceAwayThreshold: appValues.Duration("presence_away_threshold", realtime.DefaultAwayThreshold),
		PresenceSweepInterval: appValues.Duration("presence_sweep_interval", realtime.DefaultSweepInterval),
		LocationFlushInterval: appValues.Duration("location_flush_interval", realtime.DefaultFlushInterval),
		LocationEpsilon:       epsilon,
		DebounceWindow:        appValues.Duration("debounce_window", realtime.DefaultDebounceWindow),

		WSReadLimit: int64(appValues.Int("ws_read_limit")),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// CrewHub validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect, and rejects timing knobs
// that would disable the background ticks entirely.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"presence_away_threshold": appCfg.PresenceAwayThreshold,
		"presence_sweep_interval": appCfg.PresenceSweepInterval,
		"location_flush_interval": appCfg.LocationFlushInterval,
		"debounce_window":         appCfg.DebounceWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}

	if appCfg.WSReadLimit <= 0 {
		return fmt.Errorf("ws_read_limit must be positive")
	}

	return nil
}
