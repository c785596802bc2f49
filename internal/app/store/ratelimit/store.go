// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed login attempts for one email.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	AttemptCount int                `bson:"attempt_count"` // failures in the current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"`
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL anchor
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store manages rate limit tracking for login attempts.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
}

// New creates a new rate limit Store with the given configuration.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection("rate_limits"),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
	}
}

// CheckAllowed reports whether a login attempt for email may proceed.
// remaining is -1 while locked. Lookup errors fail open.
func (s *Store) CheckAllowed(ctx context.Context, email string) (allowed bool, remaining int, lockedUntil *time.Time) {
	attempt, err := s.GetAttempt(ctx, email)
	if err != nil || attempt == nil {
		return true, s.maxAttempts, nil
	}

	now := time.Now()
	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return false, -1, attempt.LockedUntil
	}
	if now.After(attempt.WindowStart.Add(s.windowDuration)) {
		return true, s.maxAttempts, nil
	}

	remaining = s.maxAttempts - attempt.AttemptCount
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordFailure counts a failed attempt in one atomic upsert and reports
// whether the email is now locked.
func (s *Store) RecordFailure(ctx context.Context, email string) (lockedOut bool, lockedUntil *time.Time) {
	email = normalize.Email(email)
	now := time.Now()
	cutoff := now.Add(-s.windowDuration)
	lockUntil := now.Add(s.lockoutDuration)

	expired := bson.M{"$lt": bson.A{bson.M{"$ifNull": bson.A{"$window_start", time.Time{}}}, cutoff}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"_reset": expired}}},
		{{Key: "$set", Value: bson.M{
			"attempt_count": bson.M{"$cond": bson.A{"$_reset", 1, bson.M{"$add": bson.A{"$attempt_count", 1}}}},
			"window_start":  bson.M{"$cond": bson.A{"$_reset", now, "$window_start"}},
			"locked_until":  bson.M{"$cond": bson.A{"$_reset", nil, bson.M{"$ifNull": bson.A{"$locked_until", nil}}}},
			"last_attempt":  now,
			"updated_at":    now,
		}}},
		{{Key: "$set", Value: bson.M{
			"locked_until": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$attempt_count", s.maxAttempts}},
				lockUntil,
				"$locked_until",
			}},
		}}},
		{{Key: "$unset", Value: "_reset"}},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var attempt Attempt
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&attempt); err != nil {
		return false, nil
	}
	if attempt.AttemptCount >= s.maxAttempts && attempt.LockedUntil != nil {
		return true, attempt.LockedUntil
	}
	return false, nil
}

// ClearOnSuccess removes the record after a successful login.
func (s *Store) ClearOnSuccess(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	return err
}

// GetAttempt returns the current attempt record, or nil when there is none.
func (s *Store) GetAttempt(ctx context.Context, email string) (*Attempt, error) {
	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
