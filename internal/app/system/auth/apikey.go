package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// StaticBearer returns middleware that requires "Authorization: Bearer <key>"
// with a fixed key, for operator endpoints such as /metrics. An empty key
// disables the check.
func StaticBearer(key string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := BearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.Warn("operator request rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "invalid or missing bearer key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
