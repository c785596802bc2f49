// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// Handler provides the JSON fallbacks the router uses for requests no
// feature handles.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusNotFound, "not_found", "No route matches "+r.URL.Path)
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not supported here")
}

// CSRFFailure is the gorilla/csrf failure handler.
func (h *Handler) CSRFFailure(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("csrf check failed",
		zap.Error(csrf.FailureReason(r)),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
	jsonutil.Error(w, http.StatusForbidden, "forbidden", "CSRF token missing or invalid")
}
