// internal/app/features/logout/logout.go
package logout

import (
	"errors"
	"net/http"

	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides logout handlers.
type Handler struct {
	sessionMgr    *auth.SessionManager
	auditLogger   *auditlog.Logger
	sessionsStore *sessions.Store
	logger        *zap.Logger
}

// NewHandler creates a new logout Handler.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	auditLogger *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessionMgr:    sessionMgr,
		auditLogger:   auditLogger,
		sessionsStore: sessions.New(db),
		logger:        logger,
	}
}

// Routes returns a chi.Router with logout routes mounted.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleLogout)
	return r
}

// handleLogout terminates the session. Anonymous callers get the same answer
// so clients can call it unconditionally.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		ctx, cancel := timeouts.ShortCtx(r.Context())
		defer cancel()

		h.auditLogger.Logout(ctx, r, user.ID)

		// The closed record is kept so the session history stays complete.
		if user.Token != "" {
			err := h.sessionsStore.Close(ctx, user.Token, sessions.EndReasonLogout)
			if err != nil && !errors.Is(err, sessions.ErrNotFound) {
				h.logger.Warn("failed to close session in store", zap.Error(err))
			}
		}
	}

	h.sessionMgr.DestroySession(w, r)
	jsonutil.OK(w, map[string]bool{"success": true})
}
