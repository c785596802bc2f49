package logout

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (http.Handler, *sessions.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

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

	// auditLogger can be nil - it's nil-safe
	return Routes(NewHandler(db, sessionMgr, nil, logger)), sessions.New(db)
}

func TestLogout_ClosesTrackedSession(t *testing.T) {
	h, store := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	uid := primitive.NewObjectID()
	if _, err := store.Create(ctx, sessions.Session{
		Token:     "tok-logout",
		UserID:    uid,
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	user := testutil.UserFor(uid, "user")
	user.Token = "tok-logout"
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/", user))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"success":true`)

	if _, err := store.GetOpen(ctx, "tok-logout"); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("session still open after logout: %v", err)
	}
}

func TestLogout_Anonymous(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, testutil.NewRequest(http.MethodPost, "/"))

	rec.AssertStatus(t, http.StatusOK)
}

func TestLogout_UntrackedSession(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/", testutil.MemberUser()))

	rec.AssertStatus(t, http.StatusOK)
}
