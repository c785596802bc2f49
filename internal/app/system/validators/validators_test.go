package validators

import (
	"errors"
	"testing"
	"time"

	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll_CreatesEveryCollection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// A second run must not fail on existing collections or validators.
	for i := 0; i < 2; i++ {
		if err := EnsureAll(ctx, db); err != nil {
			t.Fatalf("EnsureAll() run %d error = %v", i+1, err)
		}
	}

	for _, c := range Collections() {
		exists, err := collectionExists(ctx, db, c.Name)
		if err != nil {
			t.Fatalf("collectionExists(%s): %v", c.Name, err)
		}
		if !exists {
			t.Errorf("collection %s missing after EnsureAll", c.Name)
		}
	}
}

func TestEnsureCollection_ReportsCreation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := ensureCollection(ctx, db, "snippets_scratch")
	if err != nil || !created {
		t.Fatalf("first ensureCollection() = %v, %v; want created", created, err)
	}
	created, err = ensureCollection(ctx, db, "snippets_scratch")
	if err != nil || created {
		t.Fatalf("second ensureCollection() = %v, %v; want existing", created, err)
	}
}

// insertCase is one document inserted after validators are attached.
type insertCase struct {
	name   string
	coll   string
	doc    bson.M
	reject bool
}

func TestSchemas_EnforceDocumentShape(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}

	author := primitive.NewObjectID()
	project := primitive.NewObjectID()
	user := func(email string, xpTotal int64, tier string) bson.M {
		return bson.M{"name": "Ada", "email": email, "role": "user", "status": "active", "xp": xpTotal, "tier": tier}
	}

	cases := []insertCase{
		{"user ok", "users", user("ada@example.com", 0, "Bronze"), false},
		{"user negative xp", "users", user("neg@example.com", -5, "Bronze"), true},
		{"user unknown tier", "users", user("myth@example.com", 0, "Mythic"), true},
		{"user blank name", "users", bson.M{"name": "   ", "email": "b@example.com", "role": "user", "status": "active", "xp": int64(0), "tier": "Bronze"}, true},
		{"project ok", "projects", bson.M{"author": author, "title": "Snake", "code_snippet": "print(1)", "language": "python", "visibility": "public"}, false},
		{"project bad visibility", "projects", bson.M{"author": author, "title": "Snake", "code_snippet": "x", "language": "go", "visibility": "friends"}, true},
		{"comment ok", "comments", bson.M{"project": project, "author": author, "content": "nice"}, false},
		{"comment empty", "comments", bson.M{"project": project, "author": author, "content": ""}, true},
		{"community bad slug", "communities", bson.M{"slug": "Go Devs", "name": "Go Devs"}, true},
		{"conversation single participant", "conversations", bson.M{"participants": bson.A{author}, "participant_key": author.Hex()}, true},
		{"xp event zero amount", "xp_events", bson.M{"key": "comment:1", "user_id": author, "amount": int64(0), "applied": false}, true},
		{"daily stats ok", "daily_stats", bson.M{"date": time.Now().UTC(), "stat_type": "jobs", "counters": bson.M{}}, false},
		{"daily stats unknown type", "daily_stats", bson.M{"date": time.Now().UTC(), "stat_type": "visits"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.Collection(tc.coll).InsertOne(ctx, tc.doc)
			if tc.reject && err == nil {
				t.Error("insert accepted, want document validation failure")
			}
			if !tc.reject && err != nil {
				t.Errorf("insert rejected: %v", err)
			}
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		exists bool
		nocmd  bool
		noimpl bool
	}{
		{"nil", nil, false, false, false},
		{"unrelated", errors.New("connection reset"), false, false, false},
		{"namespace code", mongo.CommandError{Code: 48, Message: "exists"}, true, false, false},
		{"namespace text", errors.New("Collection already exists. NS: devcanvas.users"), true, false, false},
		{"no such command code", mongo.CommandError{Code: 59, Message: "collMod"}, false, true, false},
		{"no such command text", errors.New("No such command: collMod"), false, true, false},
		{"not implemented code", mongo.CommandError{Code: 115, Message: "validator"}, false, false, true},
		{"not supported text", mongo.CommandError{Message: "Feature not supported"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNamespaceExistsErr(tt.err); got != tt.exists {
				t.Errorf("isNamespaceExistsErr() = %v, want %v", got, tt.exists)
			}
			if got := isNoSuchCommand(tt.err); got != tt.nocmd {
				t.Errorf("isNoSuchCommand() = %v, want %v", got, tt.nocmd)
			}
			if got := isNotImplemented(tt.err); got != tt.noimpl {
				t.Errorf("isNotImplemented() = %v, want %v", got, tt.noimpl)
			}
		})
	}
}

func TestTierEnum_MatchesDomainTiers(t *testing.T) {
	got := tierEnum()
	want := bson.A{"Bronze", "Silver", "Gold", "Platinum", "Diamond"}
	if len(got) != len(want) {
		t.Fatalf("tierEnum() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tierEnum()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
