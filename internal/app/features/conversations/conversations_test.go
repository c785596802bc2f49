package conversations

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	router http.Handler
	users  *userstore.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return fixture{router: Routes(NewHandler(db, zap.NewNop())), users: userstore.New(db)}
}

func (f fixture) user(t *testing.T, email string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.Create(ctx, models.User{Name: email, Email: email})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", email, err)
	}
	return u
}

func (f fixture) as(u models.User, method, target, body string) *testutil.ResponseRecorder {
	req := testutil.WithUser(testutil.NewJSONRequest(method, target, body), testutil.UserFor(u.ID, u.Role))
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeConv(t *testing.T, rec *testutil.ResponseRecorder) models.Conversation {
	t.Helper()
	var c models.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v (body %s)", err, rec.Body.String())
	}
	return c
}

func TestOpen_ReusesParticipantSet(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")

	rec := f.as(alice, http.MethodPost, "/", `{"participantIds":["`+bob.ID.Hex()+`"]}`)
	rec.AssertStatus(t, http.StatusCreated)
	first := decodeConv(t, rec)
	if len(first.Participants) != 2 {
		t.Fatalf("participants = %v, want alice and bob", first.Participants)
	}

	// Same set from the other side, with a duplicate and the caller listed.
	rec = f.as(bob, http.MethodPost, "/", `{"participantIds":["`+alice.ID.Hex()+`","`+alice.ID.Hex()+`","`+bob.ID.Hex()+`"]}`)
	rec.AssertStatus(t, http.StatusOK)
	if again := decodeConv(t, rec); again.ID != first.ID {
		t.Errorf("reopened id = %v, want %v", again.ID, first.ID)
	}
}

func TestOpen_Invalid(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"only self", `{"participantIds":["` + alice.ID.Hex() + `"]}`},
		{"empty", `{"participantIds":[]}`},
		{"bad id", `{"participantIds":["xyz"]}`},
		{"unknown user", `{"participantIds":["` + primitive.NewObjectID().Hex() + `"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.as(alice, http.MethodPost, "/", tt.body).AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestMessages(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	eve := f.user(t, "eve@example.com")

	conv := decodeConv(t, f.as(alice, http.MethodPost, "/", `{"participantIds":["`+bob.ID.Hex()+`"]}`))
	path := "/" + conv.ID.Hex() + "/messages"

	rec := f.as(alice, http.MethodPost, path, `{"body":" if a<b && c>d "}`)
	rec.AssertStatus(t, http.StatusCreated)
	var m models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Body != "if a<b && c>d" || m.Sender != alice.ID {
		t.Errorf("message = %q from %v, want the trimmed body from alice", m.Body, m.Sender)
	}
	f.as(bob, http.MethodPost, path, `{"body":"hi back"}`).AssertStatus(t, http.StatusCreated)

	rec = f.as(bob, http.MethodGet, path, "")
	rec.AssertStatus(t, http.StatusOK)
	var resp messagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != 2 || resp.Messages[0].Body != "hi back" {
		t.Errorf("messages = %+v, want newest first", resp.Messages)
	}

	t.Run("non-participant", func(t *testing.T) {
		f.as(eve, http.MethodGet, path, "").AssertStatus(t, http.StatusNotFound)
		f.as(eve, http.MethodPost, path, `{"body":"let me in"}`).AssertStatus(t, http.StatusNotFound)
	})
	t.Run("body limits", func(t *testing.T) {
		f.as(alice, http.MethodPost, path, `{"body":"   "}`).AssertStatus(t, http.StatusBadRequest)
		long, _ := json.Marshal(map[string]string{"body": strings.Repeat("m", models.MessageMaxLength+1)})
		f.as(alice, http.MethodPost, path, string(long)).AssertStatus(t, http.StatusBadRequest)
		exact, _ := json.Marshal(map[string]string{"body": strings.Repeat("m", models.MessageMaxLength)})
		f.as(alice, http.MethodPost, path, string(exact)).AssertStatus(t, http.StatusCreated)
	})

	rec = f.as(alice, http.MethodGet, "/", "")
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, conv.ID.Hex())
	f.as(eve, http.MethodGet, "/", "").AssertNotContains(t, conv.ID.Hex())
}
