package ratelimit

import (
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore_CheckAllowed_NoRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	allowed, remaining, lockedUntil := store.CheckAllowed(ctx, "new@example.com")
	if !allowed || remaining != 5 || lockedUntil != nil {
		t.Errorf("CheckAllowed() = %v, %d, %v", allowed, remaining, lockedUntil)
	}
}

func TestStore_RecordFailure_CountsAndLocks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 3, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 1; i <= 2; i++ {
		locked, _ := store.RecordFailure(ctx, "Test@Example.com")
		if locked {
			t.Fatalf("locked after %d failures", i)
		}
		_, remaining, _ := store.CheckAllowed(ctx, "test@example.com")
		if remaining != 3-i {
			t.Errorf("after %d failures remaining = %d, want %d", i, remaining, 3-i)
		}
	}

	locked, until := store.RecordFailure(ctx, "test@example.com")
	if !locked || until == nil {
		t.Fatalf("third failure should lock, got %v %v", locked, until)
	}

	allowed, remaining, lockedUntil := store.CheckAllowed(ctx, "TEST@example.com")
	if allowed || remaining != -1 || lockedUntil == nil {
		t.Errorf("CheckAllowed() while locked = %v, %d, %v", allowed, remaining, lockedUntil)
	}
}

func TestStore_ClearOnSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store.RecordFailure(ctx, "clear@example.com")
	if err := store.ClearOnSuccess(ctx, "clear@example.com"); err != nil {
		t.Fatalf("ClearOnSuccess() error = %v", err)
	}
	attempt, err := store.GetAttempt(ctx, "clear@example.com")
	if err != nil {
		t.Fatalf("GetAttempt() error = %v", err)
	}
	if attempt != nil {
		t.Errorf("GetAttempt() = %+v, want nil", attempt)
	}
}

func TestStore_WindowExpiry_ResetsCounter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store.RecordFailure(ctx, "window@example.com")
	store.RecordFailure(ctx, "window@example.com")

	old := time.Now().Add(-time.Hour)
	if _, err := db.Collection("rate_limits").UpdateOne(ctx,
		bson.M{"email": "window@example.com"},
		bson.M{"$set": bson.M{"window_start": old}},
	); err != nil {
		t.Fatalf("backdate window: %v", err)
	}

	store.RecordFailure(ctx, "window@example.com")
	attempt, err := store.GetAttempt(ctx, "window@example.com")
	if err != nil || attempt == nil {
		t.Fatalf("GetAttempt() = %v, %v", attempt, err)
	}
	if attempt.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1 after window reset", attempt.AttemptCount)
	}
}
