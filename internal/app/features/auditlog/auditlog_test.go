package auditlog

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/audit"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	users := userstore.New(db)
	router := Routes(NewHandler(db, zap.NewNop()))

	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin, err := users.Create(ctx, models.User{Name: "Ada Admin", Email: "ada@example.com", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	target := primitive.NewObjectID()
	events := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &admin.ID, Success: true, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{Category: audit.CategoryAdmin, EventType: audit.EventUserRoleChanged, ActorID: &admin.ID, UserID: &target, Success: true, CreatedAt: time.Now().Add(-time.Hour)},
		{Category: audit.CategoryContent, EventType: audit.EventCommentDeleted, ActorID: &admin.ID, Success: true, CreatedAt: time.Now()},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	get := func(target string, user testutil.TestUser) (*testutil.ResponseRecorder, listResponse) {
		rec := testutil.NewRecorder()
		router.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest(http.MethodGet, target), user))
		var resp listResponse
		if rec.Code == http.StatusOK {
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
		}
		return rec, resp
	}
	as := testutil.UserFor(admin.ID, models.RoleAdmin)

	rec, resp := get("/", as)
	rec.AssertStatus(t, http.StatusOK)
	if resp.Total != 3 || len(resp.Events) != 3 {
		t.Fatalf("events = %d (total %d), want 3", len(resp.Events), resp.Total)
	}
	if resp.Events[0].EventType != audit.EventCommentDeleted {
		t.Errorf("first event = %q, want newest first", resp.Events[0].EventType)
	}
	if resp.Events[0].ActorName != "Ada Admin" {
		t.Errorf("ActorName = %q, want resolved name", resp.Events[0].ActorName)
	}

	_, resp = get("/?category=admin", as)
	if len(resp.Events) != 1 || resp.Events[0].EventType != audit.EventUserRoleChanged {
		t.Errorf("admin category = %+v", resp.Events)
	}

	_, resp = get("/?user="+target.Hex(), as)
	if len(resp.Events) != 1 {
		t.Errorf("user filter = %d events, want 1", len(resp.Events))
	}

	_, resp = get("/?limit=1", as)
	if len(resp.Events) != 1 || resp.Total != 3 {
		t.Errorf("limit=1 = %d events total %d, want 1 of 3", len(resp.Events), resp.Total)
	}

	since := time.Now().Add(-90 * time.Minute).UTC().Format(time.RFC3339)
	_, resp = get("/?since="+since, as)
	if len(resp.Events) != 2 {
		t.Errorf("since filter = %d events, want 2", len(resp.Events))
	}

	for _, bad := range []string{"/?category=billing", "/?user=nope", "/?since=yesterday"} {
		rec, _ := get(bad, as)
		rec.AssertStatus(t, http.StatusBadRequest)
	}

	rec, _ = get("/", testutil.MemberUser())
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2024-03-01", true},
		{"2024-03-01T10:00:00Z", true},
		{"2024-03-01T10:00:00+02:00", true},
		{"03/01/2024", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := parseSince(tt.in); ok != tt.ok {
			t.Errorf("parseSince(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}
