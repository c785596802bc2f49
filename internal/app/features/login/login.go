// internal/app/features/login/login.go
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/ratelimit"
	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/authutil"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/network"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/app/system/status"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// invalidCredentials is the single message for unknown emails and wrong
// passwords so responses do not reveal which accounts exist.
const invalidCredentials = "Invalid email or password."

// Handler provides register and login handlers.
type Handler struct {
	userStore      *userstore.Store
	sessionsStore  *sessions.Store
	rateLimitStore *ratelimit.Store // nil if rate limiting disabled
	sessionMgr     *auth.SessionManager
	tokens         *auth.TokenIssuer
	auditLogger    *auditlog.Logger
	logger         *zap.Logger
}

// NewHandler creates a new login Handler.
// rateLimitStore can be nil to disable rate limiting.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	tokens *auth.TokenIssuer,
	auditLogger *auditlog.Logger,
	rateLimitStore *ratelimit.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:      userstore.New(db),
		sessionsStore:  sessions.New(db),
		rateLimitStore: rateLimitStore,
		sessionMgr:     sessionMgr,
		tokens:         tokens,
		auditLogger:    auditLogger,
		logger:         logger,
	}
}

// Routes returns a chi.Router with the register and login routes mounted.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	return r
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	reg, err := authutil.ValidateRegistration(req.Name, req.Email, req.Password)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	user, err := h.userStore.Create(ctx, models.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: reg.PasswordHash,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		jsonutil.WriteError(w, r, h.logger, apperror.Conflict("An account with this email already exists."))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, fmt.Errorf("create user: %w", err))
		return
	}

	h.auditLogger.Registered(ctx, r, user.ID, user.Email)
	jsonutil.Created(w, registerResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("", "Email and password are required."))
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	// Check rate limit before processing
	if h.rateLimitStore != nil {
		allowed, _, lockedUntil := h.rateLimitStore.CheckAllowed(ctx, email)
		if !allowed {
			h.auditLogger.LoginLockedOut(ctx, r, email)
			jsonutil.WriteError(w, r, h.logger, apperror.RateLimited(lockoutMessage(lockedUntil)))
			return
		}
	}

	user, err := h.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			authutil.BurnCompare(req.Password)
			h.recordFailure(ctx, email)
			h.auditLogger.LoginFailedUserNotFound(ctx, r, email)
			jsonutil.WriteError(w, r, h.logger, apperror.Unauthorized(invalidCredentials))
			return
		}
		jsonutil.WriteError(w, r, h.logger, fmt.Errorf("lookup user: %w", err))
		return
	}

	if !authutil.CheckPassword(req.Password, user.PasswordHash) {
		if h.rateLimitStore != nil {
			lockedOut, lockedUntil := h.rateLimitStore.RecordFailure(ctx, email)
			if lockedOut {
				h.auditLogger.LoginLockedOut(ctx, r, email)
				jsonutil.WriteError(w, r, h.logger, apperror.RateLimited(lockoutMessage(lockedUntil)))
				return
			}
		}
		h.auditLogger.LoginFailedWrongPassword(ctx, r, user.ID, email)
		jsonutil.WriteError(w, r, h.logger, apperror.Unauthorized(invalidCredentials))
		return
	}

	// Disabled accounts are only reported after the password checks out.
	if !status.CanSignIn(user.Status) {
		h.auditLogger.LoginFailedUserDisabled(ctx, r, user.ID, email)
		jsonutil.WriteError(w, r, h.logger, apperror.Forbidden("This account is disabled."))
		return
	}

	if h.rateLimitStore != nil {
		if err := h.rateLimitStore.ClearOnSuccess(ctx, email); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.Error(err))
		}
	}

	token, exp, err := h.tokens.Issue(user.ID.Hex(), user.Role)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.createTrackedSession(w, r, user.ID, user.Role); err != nil {
		jsonutil.WriteError(w, r, h.logger, fmt.Errorf("create session: %w", err))
		return
	}

	if authutil.NeedsRehash(user.PasswordHash) {
		h.upgradeHash(ctx, user.ID, req.Password)
	}

	h.auditLogger.LoginSuccess(ctx, r, user.ID, email)
	jsonutil.OK(w, loginResponse{Token: token, ExpiresAt: exp, User: user})
}

// upgradeHash re-hashes a verified password at the current cost. Failures
// only log; the login itself already succeeded.
func (h *Handler) upgradeHash(ctx context.Context, id primitive.ObjectID, password string) {
	hash, err := authutil.HashPassword(password)
	if err == nil {
		err = h.userStore.SetPasswordHash(ctx, id, hash)
	}
	if err != nil {
		h.logger.Warn("password rehash failed", zap.String("user_id", id.Hex()), zap.Error(err))
	}
}

func (h *Handler) recordFailure(ctx context.Context, email string) {
	if h.rateLimitStore != nil {
		h.rateLimitStore.RecordFailure(ctx, email)
	}
}

// createTrackedSession sets the session cookie and records the session so
// the user can list and revoke it later.
func (h *Handler) createTrackedSession(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role string) error {
	token, err := h.sessionMgr.CreateSession(w, r, userID, role)
	if err != nil {
		return err
	}

	maxAge := h.sessionMgr.MaxAge()
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	now := time.Now().UTC()

	// Best effort - don't fail login if tracking fails
	if _, err := h.sessionsStore.Create(r.Context(), sessions.Session{
		Token:     token,
		UserID:    userID,
		IPAddress: network.ClientIP(r),
		UserAgent: r.UserAgent(),
		LoginAt:   now,
		ExpiresAt: now.Add(maxAge),
	}); err != nil {
		h.logger.Warn("failed to track session", zap.Error(err))
	}
	return nil
}

func lockoutMessage(lockedUntil *time.Time) string {
	if lockedUntil == nil {
		return "Too many failed login attempts. Please try again later."
	}
	remaining := time.Until(*lockedUntil)
	if remaining > time.Minute {
		return fmt.Sprintf("Too many failed login attempts. Please try again in %d minute(s).", int(remaining.Minutes())+1)
	}
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d second(s).", int(remaining.Seconds())+1)
}
