// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/locale"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "DEVCANVAS"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: DEVCANVAS_MONGO_URI, DEVCANVAS_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "devcanvas", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "devcanvas-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me-0123456789abcdef", Desc: "HS256 secret for API bearer tokens (32+ chars)"},
	{Name: "jwt_ttl", Default: "24h", Desc: "Bearer token lifetime"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_content", Default: "all", Desc: "Content moderation event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Content behaviour
	{Name: "enforce_project_ownership", Default: false, Desc: "Restrict project update/delete to the author or an admin"},
	{Name: "demo_fallback", Default: false, Desc: "Serve built-in sample projects when the database is unreachable"},

	{Name: "default_locale", Default: "en", Desc: "Fallback locale (en, es, fr)"},
	{Name: "xp_replay_interval", Default: "1m", Desc: "Interval for replaying unapplied XP events"},
	{Name: "session_idle_after", Default: "24h", Desc: "Close tracked sessions idle for longer than this"},

	// Admin seeding configuration
	{Name: "seed_admin_email", Default: "", Desc: "Email of admin user to create on startup"},
	{Name: "seed_admin_name", Default: "Admin", Desc: "Name of admin user to create on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Initial password for the seeded admin"},

	{Name: "metrics_token", Default: "", Desc: "Bearer key required for /metrics (blank leaves it open)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, DEVCANVAS_* for app)
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
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    appValues.Duration("jwt_ttl", 24*time.Hour),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		CSRFKey: appValues.String("csrf_key"),

		// Audit logging
		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogContent: appValues.String("audit_log_content"),
		AuditLogAdmin:   appValues.String("audit_log_admin"),

		EnforceProjectOwnership: appValues.Bool("enforce_project_ownership"),
		DemoFallback:            appValues.Bool("demo_fallback"),

		DefaultLocale:    strings.ToLower(strings.TrimSpace(appValues.String("default_locale"))),
		XPReplayInterval: appValues.Duration("xp_replay_interval", time.Minute),
		SessionIdleAfter: appValues.Duration("session_idle_after", 24*time.Hour),

		// Admin seeding
		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminName:     appValues.String("seed_admin_name"),
		SeedAdminPassword: appValues.String("seed_admin_password"),

		MetricsToken: appValues.String("metrics_token"),
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

	if len(appCfg.JWTSecret) < auth.MinSecretLength {
		logger.Error("jwt_secret too short", zap.Int("min_length", auth.MinSecretLength))
		return fmt.Errorf("jwt_secret must be at least %d characters", auth.MinSecretLength)
	}

	if appCfg.DefaultLocale != "" && !locale.IsSupported(appCfg.DefaultLocale) {
		return fmt.Errorf("default_locale %q is not supported (use one of %s)",
			appCfg.DefaultLocale, strings.Join(locale.Codes(), ", "))
	}

	for name, dest := range map[string]string{
		"audit_log_auth":    appCfg.AuditLogAuth,
		"audit_log_content": appCfg.AuditLogContent,
		"audit_log_admin":   appCfg.AuditLogAdmin,
	} {
		switch dest {
		case auditlog.DestAll, auditlog.DestDB, auditlog.DestLog, auditlog.DestOff, "":
		default:
			return fmt.Errorf("%s: unknown destination %q", name, dest)
		}
	}

	if coreCfg.Env == "prod" && appCfg.SeedAdminEmail != "" && appCfg.SeedAdminPassword == "" {
		logger.Warn("seed_admin_email set without seed_admin_password; a new admin cannot sign in until a password is set")
	}

	return nil
}
