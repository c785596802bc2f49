// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session end reasons
const (
	EndReasonLogout   = "logout"   // user signed out
	EndReasonRevoked  = "revoked"  // closed from another session
	EndReasonInactive = "inactive" // no activity within the sweep threshold
)

// ErrNotFound is returned when no open session matches the token.
var ErrNotFound = errors.New("sessions: not found")

// Session is the server-side record of one cookie login. The cookie carries
// the token; this record lets a user see and close their sign-ins.
type Session struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token        string             `bson:"token" json:"-"`
	UserID       primitive.ObjectID `bson:"user_id" json:"-"`
	IPAddress    string             `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	UserAgent    string             `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	LoginAt      time.Time          `bson:"login_at" json:"loginAt"`
	LastActivity time.Time          `bson:"last_activity" json:"lastActivity"`
	LogoutAt     *time.Time         `bson:"logout_at,omitempty" json:"-"`
	EndReason    string             `bson:"end_reason,omitempty" json:"-"`
	DurationSecs int64              `bson:"duration_secs,omitempty" json:"-"`
	ExpiresAt    time.Time          `bson:"expires_at" json:"expiresAt"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// openFilter matches sessions that are neither closed nor expired.
func openFilter(now time.Time) bson.M {
	return bson.M{"logout_at": nil, "expires_at": bson.M{"$gt": now}}
}

// Create records a new session. LoginAt and LastActivity default to now.
func (s *Store) Create(ctx context.Context, sess Session) (Session, error) {
	if sess.ID.IsZero() {
		sess.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if sess.LoginAt.IsZero() {
		sess.LoginAt = now
	}
	if sess.LastActivity.IsZero() {
		sess.LastActivity = now
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetOpen returns the open session for token.
func (s *Store) GetOpen(ctx context.Context, token string) (*Session, error) {
	f := openFilter(time.Now())
	f["token"] = token
	var sess Session
	if err := s.c.FindOne(ctx, f).Decode(&sess); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Touch bumps last_activity on an open session. Closed or unknown tokens are
// ignored.
func (s *Store) Touch(ctx context.Context, token string) error {
	f := openFilter(time.Now())
	f["token"] = token
	_, err := s.c.UpdateOne(ctx, f, bson.M{"$set": bson.M{"last_activity": time.Now().UTC()}})
	return err
}

// Close ends the session for token and records how long it lasted.
// Closing an already closed session returns ErrNotFound.
func (s *Store) Close(ctx context.Context, token, reason string) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		mongo.Pipeline{{{Key: "$set", Value: bson.M{
			"logout_at":  now,
			"end_reason": reason,
			"duration_secs": bson.M{"$toLong": bson.M{
				"$divide": bson.A{bson.M{"$subtract": bson.A{now, "$login_at"}}, 1000},
			}},
		}}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseOthers ends every open session of userID except the one holding
// keepToken and returns how many were closed.
func (s *Store) CloseOthers(ctx context.Context, userID primitive.ObjectID, keepToken string) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"user_id": userID, "token": bson.M{"$ne": keepToken}, "logout_at": nil},
		bson.M{"$set": bson.M{"logout_at": time.Now().UTC(), "end_reason": EndReasonRevoked}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListOpen returns the user's open sessions, most recently active first.
func (s *Store) ListOpen(ctx context.Context, userID primitive.ObjectID) ([]Session, error) {
	f := openFilter(time.Now())
	f["user_id"] = userID
	cur, err := s.c.Find(ctx, f, options.Find().SetSort(bson.D{
		{Key: "last_activity", Value: -1},
		{Key: "_id", Value: 1},
	}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Session{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CloseInactive ends open sessions idle for longer than threshold.
func (s *Store) CloseInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"logout_at": nil, "last_activity": bson.M{"$lt": now.Add(-threshold)}},
		bson.M{"$set": bson.M{"logout_at": now, "end_reason": EndReasonInactive}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
