// internal/app/store/comments/store.go
package commentstore

import (
	"context"
	"errors"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/storeutil"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no comment matches.
var ErrNotFound = errors.New("comment not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("comments")}
}

// Collection exposes the underlying collection for transactional callers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// Create inserts c. ID and timestamps are assigned here unless c.ID is
// already set, which lets callers derive event keys before the insert.
func (s *Store) Create(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// GetByID loads a comment by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var c models.Comment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// topLevel matches comments that do not reply to anything.
func topLevel(projectID primitive.ObjectID) bson.M {
	return bson.M{
		"project":        projectID,
		"parent_comment": bson.M{"$exists": false},
	}
}

// ListThreads returns a page of top-level comments, newest first, each with
// its direct replies oldest first. total counts top-level comments.
func (s *Store) ListThreads(ctx context.Context, projectID primitive.ObjectID, page, limit int64) ([]models.CommentThread, int64, error) {
	filter := topLevel(projectID)
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var roots []models.Comment
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	if err := cur.All(ctx, &roots); err != nil {
		return nil, 0, err
	}

	threads := make([]models.CommentThread, 0, len(roots))
	if len(roots) == 0 {
		return threads, total, nil
	}

	ids := make([]primitive.ObjectID, len(roots))
	for i, r := range roots {
		ids[i] = r.ID
	}
	var replies []models.Comment
	rcur, err := s.c.Find(ctx,
		bson.M{"parent_comment": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, 0, err
	}
	if err := rcur.All(ctx, &replies); err != nil {
		return nil, 0, err
	}

	byParent := make(map[primitive.ObjectID][]models.Comment, len(roots))
	for _, r := range replies {
		byParent[*r.ParentComment] = append(byParent[*r.ParentComment], r)
	}
	for _, root := range roots {
		rs := byParent[root.ID]
		if rs == nil {
			rs = []models.Comment{}
		}
		threads = append(threads, models.CommentThread{Comment: root, Replies: rs})
	}
	return threads, total, nil
}

// CountByProject returns the number of comments on a project, replies included.
func (s *Store) CountByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"project": projectID})
}

// CountByProjects returns comment counts keyed by project id.
func (s *Store) CountByProjects(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	out := make(map[primitive.ObjectID]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"project": bson.M{"$in": ids}}}},
		{{Key: "$group", Value: bson.M{"_id": "$project", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
		N  int64              `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.N
	}
	return out, nil
}

// DeleteWithReplies removes a comment and every reply below it.
// Returns the number of documents removed.
func (s *Store) DeleteWithReplies(ctx context.Context, id primitive.ObjectID) (int64, error) {
	all := []primitive.ObjectID{id}
	frontier := []primitive.ObjectID{id}
	for len(frontier) > 0 {
		cur, err := s.c.Find(ctx,
			bson.M{"parent_comment": bson.M{"$in": frontier}},
			options.Find().SetProjection(bson.M{"_id": 1}),
		)
		if err != nil {
			return 0, err
		}
		var children []struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.All(ctx, &children); err != nil {
			return 0, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			frontier = append(frontier, c.ID)
			all = append(all, c.ID)
		}
	}

	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": all}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByProject removes every comment on a project.
func (s *Store) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"project": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteOrphans removes comments whose project no longer exists.
func (s *Store) DeleteOrphans(ctx context.Context) (int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$project"}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "projects",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "p",
		}}},
		{{Key: "$match", Value: bson.M{"p": bson.M{"$size": 0}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	gone := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		gone[i] = r.ID
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"project": bson.M{"$in": gone}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
