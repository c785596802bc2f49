// internal/app/store/stats/statsstore.go
package statsstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Stat types.
const (
	TypeContent = "content" // documents created per collection that day
	TypeJobs    = "jobs"    // background job runs and failures
)

// ContentCollections maps a content counter to the collection it counts.
var ContentCollections = map[string]string{
	"users":       "users",
	"projects":    "projects",
	"comments":    "comments",
	"communities": "communities",
	"messages":    "messages",
	"xp_events":   "xp_events",
}

// DailyStats holds statistics for a single day.
type DailyStats struct {
	ID        primitive.ObjectID `bson:"_id" json:"-"`
	Date      time.Time          `bson:"date" json:"date"` // Truncated to day (UTC midnight)
	StatType  string             `bson:"stat_type" json:"statType"`
	Counters  map[string]int64   `bson:"counters" json:"counters"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

var (
	// ErrNotFound is returned when stats are not found.
	ErrNotFound = errors.New("stats not found")
)

// Store provides statistics persistence.
type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

// New creates a new stats store.
func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("daily_stats")}
}

// TruncateToDay returns the date truncated to midnight UTC.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IncrementCounter atomically increments a counter for the given date and stat type.
func (s *Store) IncrementCounter(ctx context.Context, date time.Time, statType, counter string, delta int64) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{
		"date":      TruncateToDay(date),
		"stat_type": statType,
	}, bson.M{
		"$inc":         bson.M{"counters." + counter: delta},
		"$set":         bson.M{"updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}, opts)
	return err
}

// SetCounters sets multiple counters at once, leaving others untouched.
func (s *Store) SetCounters(ctx context.Context, date time.Time, statType string, counters map[string]int64) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range counters {
		set["counters."+k] = v
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{
		"date":      TruncateToDay(date),
		"stat_type": statType,
	}, bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}, opts)
	return err
}

// GetForDate retrieves stats for a specific date and type.
func (s *Store) GetForDate(ctx context.Context, date time.Time, statType string) (*DailyStats, error) {
	var stats DailyStats
	err := s.c.FindOne(ctx, bson.M{
		"date":      TruncateToDay(date),
		"stat_type": statType,
	}).Decode(&stats)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// GetRange retrieves stats for a date range (both ends inclusive), oldest first.
func (s *Store) GetRange(ctx context.Context, startDate, endDate time.Time, statType string) ([]DailyStats, error) {
	start := TruncateToDay(startDate)
	end := TruncateToDay(endDate).Add(24 * time.Hour)

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{
		"date":      bson.M{"$gte": start, "$lt": end},
		"stat_type": statType,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	stats := []DailyStats{}
	if err := cur.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// SumCounters sums counters across a date range.
func (s *Store) SumCounters(ctx context.Context, startDate, endDate time.Time, statType string) (map[string]int64, error) {
	start := TruncateToDay(startDate)
	end := TruncateToDay(endDate).Add(24 * time.Hour)

	pipeline := []bson.M{
		{"$match": bson.M{
			"date":      bson.M{"$gte": start, "$lt": end},
			"stat_type": statType,
		}},
		{"$project": bson.M{"counters": bson.M{"$objectToArray": "$counters"}}},
		{"$unwind": "$counters"},
		{"$group": bson.M{
			"_id":   "$counters.k",
			"total": bson.M{"$sum": "$counters.v"},
		}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := make(map[string]int64)
	for cur.Next(ctx) {
		var doc struct {
			Key   string `bson:"_id"`
			Total int64  `bson:"total"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result[doc.Key] = doc.Total
	}
	return result, cur.Err()
}

// CountContent counts documents created on day in each of ContentCollections.
func (s *Store) CountContent(ctx context.Context, day time.Time) (map[string]int64, error) {
	start := TruncateToDay(day)
	filter := bson.M{"created_at": bson.M{"$gte": start, "$lt": start.Add(24 * time.Hour)}}

	counts := make(map[string]int64, len(ContentCollections))
	for counter, coll := range ContentCollections {
		n, err := s.db.Collection(coll).CountDocuments(ctx, filter)
		if err != nil {
			return nil, err
		}
		counts[counter] = n
	}
	return counts, nil
}

// SnapshotContent recounts day's content and stores the result.
func (s *Store) SnapshotContent(ctx context.Context, day time.Time) (map[string]int64, error) {
	counts, err := s.CountContent(ctx, day)
	if err != nil {
		return nil, err
	}
	if err := s.SetCounters(ctx, day, TypeContent, counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// RecordJobRun counts one run of job, and a failure when failed is true.
// Counter names are "<job>_runs" and "<job>_failures".
func (s *Store) RecordJobRun(ctx context.Context, at time.Time, job string, failed bool) error {
	inc := bson.M{"counters." + job + "_runs": int64(1)}
	if failed {
		inc["counters."+job+"_failures"] = int64(1)
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{
		"date":      TruncateToDay(at),
		"stat_type": TypeJobs,
	}, bson.M{
		"$inc":         inc,
		"$set":         bson.M{"updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}, opts)
	return err
}

// DeleteOlderThan deletes stats older than the cutoff date.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"date": bson.M{"$lt": TruncateToDay(cutoff)},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
