package audit

import (
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	err := store.Log(ctx, Event{
		Category:  CategoryContent,
		EventType: EventProjectDeleted,
		ActorID:   &actor,
		IP:        "127.0.0.1",
		Success:   true,
		Details:   map[string]string{"owner": "false"},
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, err := store.Query(ctx, QueryFilter{ActorID: &actor})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Query() returned %d events, want 1", len(events))
	}
	if events[0].ID.IsZero() || events[0].CreatedAt.IsZero() {
		t.Error("Log() did not assign ID and CreatedAt")
	}
	if events[0].Details["owner"] != "false" {
		t.Errorf("Details = %v", events[0].Details)
	}
}

func TestStore_QueryFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	old := time.Now().Add(-48 * time.Hour)
	store.Log(ctx, Event{Category: CategoryAuth, EventType: EventLoginSuccess, UserID: &user, Success: true, CreatedAt: old})
	store.Log(ctx, Event{Category: CategoryAuth, EventType: EventLogout, UserID: &user, Success: true})
	store.Log(ctx, Event{Category: CategoryContent, EventType: EventCommentDeleted, Success: true})

	n, err := store.Count(ctx, QueryFilter{Category: CategoryAuth})
	if err != nil || n != 2 {
		t.Errorf("Count(auth) = %d, %v; want 2", n, err)
	}

	since := time.Now().Add(-time.Hour)
	recent, err := store.Query(ctx, QueryFilter{UserID: &user, Since: &since})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(recent) != 1 || recent[0].EventType != EventLogout {
		t.Errorf("Query(since) = %+v", recent)
	}
}
