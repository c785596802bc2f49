// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for DevCanvas.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). Framework-level settings such
// as ports, TLS, CORS and log level live in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: devcanvas-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// Bearer tokens for API clients
	JWTSecret string        // HS256 signing secret, at least 32 characters
	JWTTTL    time.Duration // Token lifetime (default: 24h)

	// Rate limiting configuration for login attempts
	RateLimitEnabled       bool          // Enable rate limiting (default: true)
	RateLimitLoginAttempts int           // Max failed attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Window for counting failures (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration (default: 15m)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF tokens (32+ chars in production)

	// Audit logging: "all", "db", "log" or "off" per category
	AuditLogAuth    string
	AuditLogContent string
	AuditLogAdmin   string

	// Content behaviour
	EnforceProjectOwnership bool // Only the author (or an admin) may update/delete a project
	DemoFallback            bool // Serve sample projects when the project list query fails

	DefaultLocale    string        // Locale used when negotiation finds no match (default: en)
	XPReplayInterval time.Duration // How often pending XP events are replayed (default: 1m)
	SessionIdleAfter time.Duration // Tracked sessions idle this long are closed (default: 24h)

	// Admin seeding
	SeedAdminEmail    string // Email of admin user to create on startup
	SeedAdminName     string // Display name for the seeded admin
	SeedAdminPassword string // Password for a newly created admin (existing users keep theirs)

	// MetricsToken protects /metrics with a static bearer key. Blank leaves it open.
	MetricsToken string
}
