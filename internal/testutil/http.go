package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser is the caller a handler test runs as.
type TestUser struct {
	ID    string
	Name  string
	Email string
	Role  string
	Token string // tracked session token; usually empty
}

// AdminUser returns a fresh admin caller.
func AdminUser() TestUser {
	return TestUser{ID: primitive.NewObjectID().Hex(), Name: "Test Admin", Email: "admin@test.com", Role: models.RoleAdmin}
}

// MemberUser returns a fresh caller with the default role.
func MemberUser() TestUser {
	return TestUser{ID: primitive.NewObjectID().Hex(), Name: "Test Member", Email: "member@test.com", Role: models.RoleUser}
}

// UserFor returns a caller for a user already inserted by the test.
func UserFor(id primitive.ObjectID, role string) TestUser {
	return TestUser{ID: id.Hex(), Name: "Test User", Email: "user@test.com", Role: role}
}

// WithUser attaches user to r as a session principal, skipping the cookie
// middleware.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Via:   auth.ViaSession,
		Token: user.Token,
	})
}

func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(NewRequest(method, target), user)
}

// NewJSONRequest builds a request with body sent as application/json.
func NewJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// errorfer is the subset of testing.TB the assertions need.
type errorfer interface {
	Errorf(format string, args ...any)
}

// ResponseRecorder adds assertions to httptest.ResponseRecorder.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

func (r *ResponseRecorder) AssertStatus(t errorfer, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, strings.TrimSpace(r.Body.String()))
	}
}

func (r *ResponseRecorder) AssertContains(t errorfer, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

func (r *ResponseRecorder) AssertNotContains(t errorfer, s string) {
	if strings.Contains(r.Body.String(), s) {
		t.Errorf("response body unexpectedly contains %q", s)
	}
}

// AssertErrorCode checks the "error" field of a JSON error body.
func (r *ResponseRecorder) AssertErrorCode(t errorfer, code string) {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &body); err != nil {
		t.Errorf("error body is not JSON: %v", err)
		return
	}
	if body.Error != code {
		t.Errorf("error code: got %q, want %q", body.Error, code)
	}
}
