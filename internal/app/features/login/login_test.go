package login

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/ratelimit"
	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/authutil"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	authutil.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fixture struct {
	db      *mongo.Database
	handler http.Handler
	tokens  *auth.TokenIssuer
	limit   *ratelimit.Store
}

// newFixture builds the handler. maxAttempts > 0 enables rate limiting with
// a one-minute window and lockout.
func newFixture(t *testing.T, maxAttempts int) fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	var limit *ratelimit.Store
	if maxAttempts > 0 {
		limit = ratelimit.New(db, maxAttempts, time.Minute, time.Minute)
	}

	sessionMgr, err := auth.NewSessionManager(
		"test-session-key-for-testing-1234567890",
		"test-session",
		"",
		24*time.Hour,
		false,
		logger,
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	// auditLogger can be nil - it's nil-safe
	h := NewHandler(db, sessionMgr, tokens, nil, limit, logger)
	return fixture{db: db, handler: Routes(h), tokens: tokens, limit: limit}
}

func (f fixture) do(method, target, body string) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.handler.ServeHTTP(rec, testutil.NewJSONRequest(method, target, body))
	return rec
}

func (f fixture) register(t *testing.T, email, password string) {
	t.Helper()
	rec := f.do(http.MethodPost, "/register",
		`{"name":"Ada Lovelace","email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_Created(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(http.MethodPost, "/register",
		`{"name":" Ada Lovelace ","email":"ADA@example.com","password":"analytical-engine"}`)
	rec.AssertStatus(t, http.StatusCreated)

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["name"] != "Ada Lovelace" || resp["email"] != "ada@example.com" || resp["id"] == "" {
		t.Errorf("response = %v", resp)
	}
	if _, leaked := resp["passwordHash"]; leaked {
		t.Error("response leaked password hash")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t, 0)
	f.register(t, "ada@example.com", "analytical-engine")

	rec := f.do(http.MethodPost, "/register",
		`{"name":"Other","email":"Ada@Example.com","password":"analytical-engine"}`)
	rec.AssertStatus(t, http.StatusConflict)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := userstore.New(f.db).Count(ctx, bson.M{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestRegister_Invalid(t *testing.T) {
	f := newFixture(t, 0)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"name":`},
		{"empty body", ``},
		{"missing name", `{"email":"a@example.com","password":"analytical-engine"}`},
		{"bad email", `{"name":"A","email":"not-an-email","password":"analytical-engine"}`},
		{"short password", `{"name":"A","email":"a@example.com","password":"short"}`},
		{"common password", `{"name":"A","email":"a@example.com","password":"password123"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/register", tt.body)
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, "validation_error")
		})
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, 0)
	f.register(t, "ada@example.com", "analytical-engine")

	rec := f.do(http.MethodPost, "/login", `{"email":"ADA@example.com","password":"analytical-engine"}`)
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			XP    int64  `json:"xp"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := f.tokens.Validate(resp.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.Subject != resp.User.ID || resp.User.Email != "ada@example.com" {
		t.Errorf("claims subject = %q, user = %+v", claims.Subject, resp.User)
	}
	rec.AssertNotContains(t, "password")

	if len(rec.Result().Cookies()) == 0 {
		t.Error("login set no session cookie")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := userstore.New(f.db).GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	open, err := sessions.New(f.db).ListOpen(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(open) != 1 {
		t.Errorf("tracked sessions = %d, want 1", len(open))
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t, 0)
	f.register(t, "ada@example.com", "analytical-engine")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"ada@example.com","password":"difference-engine"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"bob@example.com","password":"analytical-engine"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"ada@example.com"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/login", tt.body)
			rec.AssertStatus(t, tt.want)
			if len(rec.Result().Cookies()) != 0 {
				t.Error("failed login set a cookie")
			}
		})
	}
}

func TestLogin_DisabledUser(t *testing.T) {
	f := newFixture(t, 0)
	f.register(t, "ada@example.com", "analytical-engine")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(f.db)
	u, err := users.GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if err := users.SetStatus(ctx, u.ID, "disabled"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	rec := f.do(http.MethodPost, "/login", `{"email":"ada@example.com","password":"analytical-engine"}`)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestLogin_LocksOutAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, "ada@example.com", "analytical-engine")

	wrong := `{"email":"ada@example.com","password":"difference-engine"}`
	f.do(http.MethodPost, "/login", wrong).AssertStatus(t, http.StatusUnauthorized)
	f.do(http.MethodPost, "/login", wrong).AssertStatus(t, http.StatusUnauthorized)
	f.do(http.MethodPost, "/login", wrong).AssertStatus(t, http.StatusTooManyRequests)

	// The right password is refused while locked.
	rec := f.do(http.MethodPost, "/login", `{"email":"ada@example.com","password":"analytical-engine"}`)
	rec.AssertStatus(t, http.StatusTooManyRequests)
	rec.AssertContains(t, "Too many failed login attempts")
}

func TestLogin_SuccessClearsAttempts(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, "ada@example.com", "analytical-engine")

	f.do(http.MethodPost, "/login", `{"email":"ada@example.com","password":"nope-nope-nope"}`).
		AssertStatus(t, http.StatusUnauthorized)
	f.do(http.MethodPost, "/login", `{"email":"ada@example.com","password":"analytical-engine"}`).
		AssertStatus(t, http.StatusOK)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	attempt, err := f.limit.GetAttempt(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetAttempt() error = %v", err)
	}
	if attempt != nil {
		t.Errorf("attempts not cleared: %+v", attempt)
	}
}

func TestLockoutMessage(t *testing.T) {
	if got := lockoutMessage(nil); got != "Too many failed login attempts. Please try again later." {
		t.Errorf("lockoutMessage(nil) = %q", got)
	}
	in := time.Now().Add(5*time.Minute + 10*time.Second)
	if got := lockoutMessage(&in); got != "Too many failed login attempts. Please try again in 6 minute(s)." {
		t.Errorf("lockoutMessage(5m10s) = %q", got)
	}
}

func TestLogin_UpgradesLowCostHash(t *testing.T) {
	f := newFixture(t, 0)
	f.register(t, "ada@example.com", "analytical-engine")

	authutil.BcryptCost = bcrypt.MinCost + 1
	defer func() { authutil.BcryptCost = bcrypt.MinCost }()

	rec := f.do(http.MethodPost, "/login", `{"email":"ada@example.com","password":"analytical-engine"}`)
	rec.AssertStatus(t, http.StatusOK)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := userstore.New(f.db).GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	if err != nil || cost != bcrypt.MinCost+1 {
		t.Errorf("stored hash cost = %d (%v), want %d", cost, err, bcrypt.MinCost+1)
	}
	if !authutil.CheckPassword("analytical-engine", u.PasswordHash) {
		t.Error("upgraded hash no longer matches the password")
	}
}
