package conversationstore

import (
	"errors"
	"testing"

	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParticipantKey(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	ids1, k1 := ParticipantKey([]primitive.ObjectID{a, b})
	ids2, k2 := ParticipantKey([]primitive.ObjectID{b, a, b, primitive.NilObjectID})
	if k1 != k2 {
		t.Errorf("keys differ for the same set: %q vs %q", k1, k2)
	}
	if len(ids1) != 2 || len(ids2) != 2 {
		t.Errorf("ids = %v / %v, want 2 unique", ids1, ids2)
	}
	if ids2[0].Hex() > ids2[1].Hex() {
		t.Error("ids should be sorted")
	}
}

func TestStore_Open(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	conv, created, err := store.Open(ctx, []primitive.ObjectID{a, b})
	if err != nil || !created {
		t.Fatalf("Open() = %v, %v, %v", conv, created, err)
	}
	if !conv.HasParticipant(a) || !conv.HasParticipant(b) {
		t.Error("conversation missing participants")
	}

	again, created, err := store.Open(ctx, []primitive.ObjectID{b, a})
	if err != nil || created || again.ID != conv.ID {
		t.Errorf("reopen = %v, created %v, %v, want existing", again.ID, created, err)
	}

	if _, _, err := store.Open(ctx, []primitive.ObjectID{a, a}); !errors.Is(err, errTooFew) {
		t.Errorf("Open(self) error = %v, want errTooFew", err)
	}
}

func TestStore_GetForParticipant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	conv, _, err := store.Open(ctx, []primitive.ObjectID{a, b})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := store.GetForParticipant(ctx, conv.ID, a); err != nil {
		t.Errorf("participant lookup error = %v", err)
	}
	if _, err := store.GetForParticipant(ctx, conv.ID, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("outsider lookup error = %v, want ErrNotFound", err)
	}
}

func TestStore_Messages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	older, _, err := store.Open(ctx, []primitive.ObjectID{a, b})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	newer, _, err := store.Open(ctx, []primitive.ObjectID{a, c})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	for _, body := range []string{"hi", "how are you"} {
		if _, err := store.AddMessage(ctx, models.Message{Conversation: older.ID, Sender: a, Body: body}); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	msgs, total, err := store.ListMessages(ctx, older.ID, 1, 10)
	if err != nil || total != 2 || len(msgs) != 2 {
		t.Fatalf("ListMessages() = %d, total %d, %v", len(msgs), total, err)
	}
	if msgs[0].Body != "how are you" {
		t.Errorf("newest message first, got %q", msgs[0].Body)
	}

	convs, err := store.ListForUser(ctx, a, 1, 10)
	if err != nil || len(convs) != 2 {
		t.Fatalf("ListForUser() = %d, %v", len(convs), err)
	}
	if convs[0].ID != older.ID || convs[0].LastMessageAt == nil {
		t.Errorf("conversation with latest message should come first")
	}
	if convs[1].ID != newer.ID {
		t.Errorf("second conversation = %v, want %v", convs[1].ID, newer.ID)
	}

	mine, err := store.ListForUser(ctx, c, 1, 10)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListForUser(c) = %d, %v", len(mine), err)
	}
}
