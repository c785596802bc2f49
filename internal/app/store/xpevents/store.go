// internal/app/store/xpevents/store.go
package xpeventstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no event matches.
var ErrNotFound = errors.New("xp event not found")

// Store is the XP event log. Each award is written here before it is applied
// to the user so a crash between the two can be replayed.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("xp_events")}
}

// Collection exposes the underlying collection for transactional callers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// Record inserts a pending event. If an event with the same key already
// exists, nothing is written and created is false.
func (s *Store) Record(ctx context.Context, e models.XPEvent) (created bool, err error) {
	e.ID = primitive.NewObjectID()
	e.Applied = false
	e.AppliedAt = nil
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetByKey loads an event by its key.
func (s *Store) GetByKey(ctx context.Context, key string) (*models.XPEvent, error) {
	var e models.XPEvent
	if err := s.c.FindOne(ctx, bson.M{"key": key}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// MarkApplied flags the event as applied.
func (s *Store) MarkApplied(ctx context.Context, key string) error {
	now := time.Now()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"key": key, "applied": false},
		bson.M{"$set": bson.M{"applied": true, "applied_at": now}},
	)
	return err
}

// ListPending returns unapplied events created before the grace period,
// oldest first.
func (s *Store) ListPending(ctx context.Context, grace time.Duration, limit int64) ([]models.XPEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{
		"applied":    false,
		"created_at": bson.M{"$lt": time.Now().Add(-grace)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.XPEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountPending returns the number of unapplied events.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"applied": false})
}
