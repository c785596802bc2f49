// internal/app/features/heartbeat/heartbeat.go
package heartbeat

import (
	"errors"
	"net/http"

	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler keeps tracked sessions alive for clients that stay open.
type Handler struct {
	Sessions   *sessions.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

// NewHandler creates a new heartbeat handler.
func NewHandler(sessStore *sessions.Store, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Sessions:   sessStore,
		SessionMgr: sessionMgr,
		Log:        logger,
	}
}

// Routes returns a chi.Router with heartbeat routes mounted.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Post("/", h.ServeHeartbeat)
	return r
}

// ServeHeartbeat handles POST /user/heartbeat.
// Bearer clients have no tracked session and get 204 straight away. A cookie
// session that was closed elsewhere is cleared and answered with 401 so the
// client signs in again.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	if user.Token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	if _, err := h.Sessions.GetOpen(ctx, user.Token); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			h.SessionMgr.DestroySession(w, r)
			jsonutil.Unauthorized(w, "session has ended")
			return
		}
		jsonutil.WriteError(w, r, h.Log, err)
		return
	}

	if err := h.Sessions.Touch(ctx, user.Token); err != nil {
		h.Log.Warn("failed to update session activity", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
