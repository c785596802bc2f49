// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor returns the principal's user id and normalized role. ok is false for
// anonymous requests and for a malformed id, so ok=true always carries a
// usable ObjectID.
func Actor(r *http.Request) (userID primitive.ObjectID, role string, ok bool) {
	user, found := auth.CurrentUser(r)
	if !found {
		return primitive.NilObjectID, "", false
	}
	id := user.UserID()
	if id.IsZero() {
		return primitive.NilObjectID, "", false
	}
	return id, normalize.Role(user.Role), true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	_, role, ok := Actor(r)
	return ok && role == models.RoleAdmin
}

// IsOwner reports whether the principal is owner.
func IsOwner(r *http.Request, owner primitive.ObjectID) bool {
	id, _, ok := Actor(r)
	return ok && id == owner
}

// CanModify reports whether the principal may change or remove something
// owned by owner: its owner or an admin.
func CanModify(r *http.Request, owner primitive.ObjectID) bool {
	return IsOwner(r, owner) || IsAdmin(r)
}
