package profile

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/authutil"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	authutil.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fixture struct {
	router   http.Handler
	users    *userstore.Store
	sessions *sessions.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	// auditLogger can be nil - it's nil-safe
	h := NewHandler(db, nil, zap.NewNop())

	r := chi.NewRouter()
	r.Mount("/user", Routes(h))
	r.Mount("/users", PublicRoutes(h))
	return fixture{router: r, users: userstore.New(db), sessions: sessions.New(db)}
}

// createTestUser creates a user with the given password and returns it.
func (f fixture) createTestUser(t *testing.T, email, password string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, err := authutil.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u, err := f.users.Create(ctx, models.User{Name: "Ada Lovelace", Email: email, PasswordHash: hash})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func (f fixture) serve(r *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func (f fixture) as(u models.User, method, target, body string) *testutil.ResponseRecorder {
	req := testutil.NewJSONRequest(method, target, body)
	return f.serve(testutil.WithUser(req, testutil.UserFor(u.ID, u.Role)))
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"empty", "", "Unknown Device"},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X)", "iPhone"},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 14_0 like Mac OS X)", "iPad"},
		{"android_phone", "Mozilla/5.0 (Linux; Android 10; Mobile)", "Android Phone"},
		{"android_tablet", "Mozilla/5.0 (Linux; Android 10; Tablet)", "Android Tablet"},
		{"windows_chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/90", "Windows (Chrome)"},
		{"windows_firefox", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:88.0) Firefox/88", "Windows (Firefox)"},
		{"windows_edge", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Edge/90", "Windows (Edge)"},
		{"mac_safari", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15", "Mac (Safari)"},
		{"mac_chrome", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/90", "Mac (Chrome)"},
		{"mac_firefox", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:88.0) Firefox/88", "Mac (Firefox)"},
		{"linux_chrome", "Mozilla/5.0 (X11; Linux x86_64) Chrome/90", "Linux (Chrome)"},
		{"linux_firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:88.0) Firefox/88", "Linux (Firefox)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDevice(tt.userAgent)
			if got != tt.want {
				t.Errorf("parseDevice(%q) = %q, want %q", tt.userAgent, got, tt.want)
			}
		})
	}
}


func TestShowProfile(t *testing.T) {
	f := newFixture(t)
	u := f.createTestUser(t, "ada@example.com", "analytical-engine")

	rec := f.as(u, http.MethodGet, "/user/", "")
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"email":"ada@example.com"`)
	rec.AssertNotContains(t, "password")

	anon := f.serve(testutil.NewRequest(http.MethodGet, "/user/"))
	anon.AssertStatus(t, http.StatusUnauthorized)
}

func TestUpdateProfile_AllowList(t *testing.T) {
	f := newFixture(t)
	u := f.createTestUser(t, "ada@example.com", "analytical-engine")

	rec := f.as(u, http.MethodPatch, "/user/", `{
		"name": "  Countess Ada ",
		"bio": "First programmer",
		"website": "https://ada.dev",
		"skills": ["Go", "go", "Math"],
		"preferences": {"theme": "DARK", "language": "es-MX", "publicProfile": false},
		"xp": 99999,
		"tier": "Diamond",
		"role": "admin"
	}`)
	rec.AssertStatus(t, http.StatusOK)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Countess Ada" || got.Bio != "First programmer" || got.Website != "https://ada.dev" {
		t.Errorf("profile = %+v", got)
	}
	if len(got.Skills) != 2 {
		t.Errorf("Skills = %v, want deduplicated", got.Skills)
	}
	if got.Preferences.Theme != models.ThemeDark || got.Preferences.Language != "es" || got.Preferences.PublicProfile {
		t.Errorf("Preferences = %+v", got.Preferences)
	}
	if got.XP != 0 || got.Tier != xp.Bronze || got.Role != models.RoleUser {
		t.Errorf("protected fields changed: xp=%d tier=%s role=%s", got.XP, got.Tier, got.Role)
	}
}

func TestUpdateProfile_Invalid(t *testing.T) {
	f := newFixture(t)
	u := f.createTestUser(t, "ada@example.com", "analytical-engine")

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"   "}`},
		{"bad website", `{"website":"ftp://ada.dev"}`},
		{"bad theme", `{"preferences":{"theme":"neon"}}`},
		{"bad language", `{"preferences":{"language":"not a tag!"}}`},
		{"malformed", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.as(u, http.MethodPatch, "/user/", tt.body)
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}

	// Clearing the website is allowed.
	f.as(u, http.MethodPatch, "/user/", `{"website":""}`).AssertStatus(t, http.StatusOK)
}

func TestDeleteAccount_NotImplemented(t *testing.T) {
	f := newFixture(t)
	u := f.createTestUser(t, "ada@example.com", "analytical-engine")

	f.as(u, http.MethodDelete, "/user/", "").AssertStatus(t, http.StatusNotImplemented)
}

func TestShowPublic(t *testing.T) {
	f := newFixture(t)
	ada := f.createTestUser(t, "ada@example.com", "analytical-engine")
	bob := f.createTestUser(t, "bob@example.com", "analytical-engine")

	rec := f.as(bob, http.MethodGet, "/users/"+ada.ID.Hex(), "")
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertNotContains(t, "ada@example.com")

	private := false
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := f.users.UpdateProfile(ctx, ada.ID, userstore.ProfileUpdate{PublicProfile: &private}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	f.as(bob, http.MethodGet, "/users/"+ada.ID.Hex(), "").AssertStatus(t, http.StatusNotFound)
	f.serve(testutil.NewRequest(http.MethodGet, "/users/"+ada.ID.Hex())).AssertStatus(t, http.StatusNotFound)
	f.as(ada, http.MethodGet, "/users/"+ada.ID.Hex(), "").AssertStatus(t, http.StatusOK)

	f.serve(testutil.NewRequest(http.MethodGet, "/users/not-an-id")).AssertStatus(t, http.StatusNotFound)
	f.serve(testutil.NewRequest(http.MethodGet, "/users/"+primitive.NewObjectID().Hex())).AssertStatus(t, http.StatusNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	u := f.createTestUser(t, "ada@example.com", "analytical-engine")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong current", `{"currentPassword":"nope","newPassword":"difference-engine"}`, http.StatusBadRequest},
		{"too weak", `{"currentPassword":"analytical-engine","newPassword":"short"}`, http.StatusBadRequest},
		{"same as current", `{"currentPassword":"analytical-engine","newPassword":"analytical-engine"}`, http.StatusBadRequest},
		{"success", `{"currentPassword":"analytical-engine","newPassword":"difference-engine"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.as(u, http.MethodPost, "/user/password", tt.body).AssertStatus(t, tt.want)
		})
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !authutil.CheckPassword("difference-engine", got.PasswordHash) {
		t.Error("new password not stored")
	}
}

func TestSessions_ListAndRevoke(t *testing.T) {
	f := newFixture(t)
	u := f.createTestUser(t, "ada@example.com", "analytical-engine")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, tok := range []string{"mine", "laptop", "phone"} {
		if _, err := f.sessions.Create(ctx, sessions.Session{
			Token:     tok,
			UserID:    u.ID,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Chrome/90",
			ExpiresAt: time.Now().Add(time.Hour),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	caller := testutil.UserFor(u.ID, u.Role)
	caller.Token = "mine"

	rec := f.serve(testutil.WithUser(testutil.NewRequest(http.MethodGet, "/user/sessions"), caller))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertNotContains(t, "laptop")

	var resp struct {
		Sessions []struct {
			Device  string `json:"device"`
			Current bool   `json:"current"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	current := 0
	for _, s := range resp.Sessions {
		if s.Current {
			current++
		}
		if s.Device != "Linux (Chrome)" {
			t.Errorf("Device = %q", s.Device)
		}
	}
	if len(resp.Sessions) != 3 || current != 1 {
		t.Fatalf("sessions = %+v", resp.Sessions)
	}

	rec = f.serve(testutil.WithUser(testutil.NewRequest(http.MethodDelete, "/user/sessions"), caller))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"closed":2`)

	open, err := f.sessions.ListOpen(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(open) != 1 || open[0].Token != "mine" {
		t.Errorf("open sessions after revoke = %+v", open)
	}
}
