// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level, CORS, and request limits. AppConfig is
// where everything specific to CrewHub lives: the Mongo connection and
// the realtime subsystem's tuning knobs.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Presence tracking
	PresenceAwayThreshold time.Duration // inactivity before a user is marked away
	PresenceSweepInterval time.Duration // how often the away sweep runs

	// Location sharing
	LocationFlushInterval time.Duration // how often dirty locations are persisted
	LocationEpsilon       float64       // minimum broadcast-worthy movement, in degrees

	// Outbound event coalescing
	DebounceWindow time.Duration // quiet period before a pending batch flushes

	// WebSocket transport
	WSReadLimit int64 // max inbound message size in bytes
}
