// internal/app/system/auth/principal.go
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal sources.
const (
	ViaSession = "session"
	ViaBearer  = "bearer"
)

// UserFetcher loads the current user record for a principal. It returns nil
// when the user is gone or may no longer sign in.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionUser is the authenticated caller attached to the request context.
type SessionUser struct {
	ID    string
	Name  string
	Email string
	Role  string
	Via   string // ViaSession or ViaBearer
	Token string // tracked session token; empty for bearer principals
}

// UserID parses ID, returning the nil ObjectID when it is malformed.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

func (u *SessionUser) IsAdmin() bool {
	return normalize.Role(u.Role) == models.RoleAdmin
}

type principalKey struct{}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey{}, u))
}

// WithTestUser attaches u to the request as if middleware had resolved it.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// CurrentUser returns the caller, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(principalKey{}).(*SessionUser)
	return u, ok && u != nil
}

// ViewerID returns the caller's ObjectID, or the nil ObjectID when anonymous.
func ViewerID(r *http.Request) primitive.ObjectID {
	if u, ok := CurrentUser(r); ok {
		return u.UserID()
	}
	return primitive.NilObjectID
}

// BearerToken extracts the credential of an "Authorization: Bearer" header.
// The scheme is case-insensitive.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireSignedIn answers anonymous callers with a JSON 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			jsonutil.Unauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers anonymous callers with 401 and callers holding none of
// the allowed roles with 403. Role names compare case-insensitively.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	roles := make(map[string]bool, len(allowed))
	for _, role := range allowed {
		roles[normalize.Role(role)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			switch {
			case !ok:
				jsonutil.Unauthorized(w, "authentication required")
			case !roles[normalize.Role(u.Role)]:
				jsonutil.Error(w, http.StatusForbidden, "forbidden", "insufficient role")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
