// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	auditlogfeature "github.com/devcanvas/devcanvas/internal/app/features/auditlog"
	commentsfeature "github.com/devcanvas/devcanvas/internal/app/features/comments"
	communitiesfeature "github.com/devcanvas/devcanvas/internal/app/features/communities"
	conversationsfeature "github.com/devcanvas/devcanvas/internal/app/features/conversations"
	errorsfeature "github.com/devcanvas/devcanvas/internal/app/features/errors"
	healthfeature "github.com/devcanvas/devcanvas/internal/app/features/health"
	heartbeatfeature "github.com/devcanvas/devcanvas/internal/app/features/heartbeat"
	leaderboardfeature "github.com/devcanvas/devcanvas/internal/app/features/leaderboard"
	loginfeature "github.com/devcanvas/devcanvas/internal/app/features/login"
	logoutfeature "github.com/devcanvas/devcanvas/internal/app/features/logout"
	profilefeature "github.com/devcanvas/devcanvas/internal/app/features/profile"
	projectsfeature "github.com/devcanvas/devcanvas/internal/app/features/projects"
	statsfeature "github.com/devcanvas/devcanvas/internal/app/features/stats"
	systemusersfeature "github.com/devcanvas/devcanvas/internal/app/features/systemusers"
	"github.com/devcanvas/devcanvas/internal/app/store/audit"
	"github.com/devcanvas/devcanvas/internal/app/store/ratelimit"
	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/engagement"
	"github.com/devcanvas/devcanvas/internal/app/system/locale"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// CSRFHeader carries the token for cookie-authenticated clients. It is set on
// every response and must be echoed back on unsafe requests.
const CSRFHeader = "X-CSRF-Token"

// BuildHandler constructs the root HTTP handler (router) for DevCanvas.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed.
//
// Browser clients authenticate with the session cookie and must echo the
// X-CSRF-Token header on unsafe requests. API clients send a bearer token
// issued by POST /auth/login and skip CSRF entirely.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on each request, so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db, logger))

	tokens, err := auth.NewTokenIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetTokenIssuer(tokens)

	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Content: appCfg.AuditLogContent,
		Admin:   appCfg.AuditLogAdmin,
	})

	sessionsStore := sessions.New(db)
	eng := engagement.New(db, deps.Metrics, logger)
	errorsHandler := errorsfeature.NewHandler(logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	r.Use(deps.Metrics.Middleware)

	// Locale prefix: /es/projects is routed as /projects with "es" in context.
	r.Use(locale.Middleware(locale.Config{
		Default: appCfg.DefaultLocale,
		Skip:    []string{"/health", "/ready", "/readyz", "/livez", "/metrics"},
	}))

	// Session middleware: loads the SessionUser from the cookie or a bearer token.
	r.Use(sessionMgr.LoadSessionUser)

	r.Use(csrfMiddleware(appCfg, sessionMgr, secure, errorsHandler))

	// ─────────────────────────────────────────────────────────────────────────────
	// Operational endpoints
	// ─────────────────────────────────────────────────────────────────────────────

	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.DemoFallback, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	r.With(auth.StaticBearer(appCfg.MetricsToken, logger)).Handle("/metrics", deps.Metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────────
	// Authentication
	// ─────────────────────────────────────────────────────────────────────────────

	// Rate limiting for login attempts (nil if disabled)
	var rateLimitStore *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimitStore = ratelimit.New(
			db,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout,
		)
	}

	loginHandler := loginfeature.NewHandler(db, sessionMgr, tokens, auditLogger, rateLimitStore, logger)
	r.Mount("/auth", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(db, sessionMgr, auditLogger, logger)
	r.Mount("/auth/logout", logoutfeature.Routes(logoutHandler))

	// ─────────────────────────────────────────────────────────────────────────────
	// Users
	// ─────────────────────────────────────────────────────────────────────────────

	projectsHandler := projectsfeature.NewHandler(db, eng, auditLogger, deps.Metrics, projectsfeature.Options{
		EnforceOwnership: appCfg.EnforceProjectOwnership,
		DemoFallback:     appCfg.DemoFallback,
	}, logger)

	profileHandler := profilefeature.NewHandler(db, auditLogger, logger)
	r.Mount("/user", profilefeature.Routes(profileHandler))
	r.With(auth.RequireSignedIn).Get("/user/projects", projectsHandler.ListMine)
	r.With(auth.RequireSignedIn).Get("/user/bookmarks", projectsHandler.ListBookmarks)

	heartbeatHandler := heartbeatfeature.NewHandler(sessionsStore, sessionMgr, logger)
	r.Mount("/user/heartbeat", heartbeatfeature.Routes(heartbeatHandler))

	r.Mount("/users", profilefeature.PublicRoutes(profileHandler))

	leaderboardHandler := leaderboardfeature.NewHandler(db, logger)
	r.Mount("/leaderboard", leaderboardfeature.Routes(leaderboardHandler))

	// ─────────────────────────────────────────────────────────────────────────────
	// Content
	// ─────────────────────────────────────────────────────────────────────────────

	r.Mount("/projects", projectsfeature.Routes(projectsHandler))

	commentsHandler := commentsfeature.NewHandler(db, eng, auditLogger, logger)
	r.Mount("/projects/{id}/comments", commentsfeature.ThreadRoutes(commentsHandler))
	r.Mount("/comments", commentsfeature.Routes(commentsHandler))

	communitiesHandler := communitiesfeature.NewHandler(db, logger)
	r.Mount("/communities", communitiesfeature.Routes(communitiesHandler))

	conversationsHandler := conversationsfeature.NewHandler(db, logger)
	r.Mount("/conversations", conversationsfeature.Routes(conversationsHandler))

	// ─────────────────────────────────────────────────────────────────────────────
	// Administration (admin role only; the feature routers enforce it)
	// ─────────────────────────────────────────────────────────────────────────────

	sysUsersHandler := systemusersfeature.NewHandler(db, auditLogger, logger)
	r.Mount("/admin/users", systemusersfeature.Routes(sysUsersHandler))

	auditLogHandler := auditlogfeature.NewHandler(db, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditLogHandler))

	var jobs statsfeature.JobSource
	if taskRunner != nil {
		jobs = taskRunner
	}
	statsHandler := statsfeature.NewHandler(db, jobs, logger)
	r.Mount("/admin/stats", statsfeature.Routes(statsHandler))

	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}

// csrfMiddleware applies gorilla/csrf to cookie-authenticated requests.
// Bearer requests and requests without a session cookie carry no ambient
// credential and pass straight through. The current token is exposed in
// CSRFHeader so script clients can echo it.
func csrfMiddleware(appCfg AppConfig, sessionMgr *auth.SessionManager, secure bool, errorsHandler *errorsfeature.Handler) func(http.Handler) http.Handler {
	// Cookie name is "devcanvas_csrf" to avoid collisions with other services
	// on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("devcanvas_csrf"),
		csrf.RequestHeader(CSRFHeader),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(errorsHandler.CSRFFailure)),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	protect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	return func(next http.Handler) http.Handler {
		exposed := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set(CSRFHeader, csrf.Token(req))
			next.ServeHTTP(w, req)
		})
		protected := protect(exposed)

		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if _, ok := auth.BearerToken(req); ok {
				next.ServeHTTP(w, req)
				return
			}
			if _, err := req.Cookie(sessionMgr.SessionName()); err != nil {
				// Anonymous requests still get a token so the first
				// cookie-authenticated write can carry one.
				protected.ServeHTTP(w, csrf.UnsafeSkipCheck(req))
				return
			}
			protected.ServeHTTP(w, req)
		})
	}
}
