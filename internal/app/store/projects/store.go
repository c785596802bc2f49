// internal/app/store/projects/store.go
package projectstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/storeutil"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no project matches.
	ErrNotFound = errors.New("project not found")
	errNoAuthor = errors.New("project author is required")
	errNoViewer = errors.New("toggle requires a user")
)

// Set fields that support toggling.
const (
	fieldLikes     = "likes"
	fieldBookmarks = "bookmarks"
)

// Sort orders for List.
const (
	SortRecent  = "recent"
	SortPopular = "popular"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

// Collection exposes the underlying collection for transactional callers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// Create inserts a new project with empty like and bookmark sets.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	if p.Author.IsZero() {
		return models.Project{}, errNoAuthor
	}
	p.ID = primitive.NewObjectID()
	p.Title = strings.TrimSpace(p.Title)
	p.Language = normalize.Language(p.Language)
	p.Tags = normalize.Tags(p.Tags)
	if p.Visibility == "" {
		p.Visibility = models.VisibilityPublic
	}
	p.Likes = []primitive.ObjectID{}
	p.Bookmarks = []primitive.ObjectID{}
	p.Views = 0

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID loads a project by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Exists reports whether a project with id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementViews bumps the view counter.
func (s *Store) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	return err
}

// ProjectUpdate holds the author-editable fields.
// All fields are pointers - nil means "don't update this field".
type ProjectUpdate struct {
	Title       *string
	Description *string
	CodeSnippet *string
	Language    *string
	Tags        *[]string
	Visibility  *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProjectUpdate) IsEmpty() bool {
	return u == ProjectUpdate{}
}

// Update applies u and returns the updated project.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u ProjectUpdate) (*models.Project, error) {
	set := bson.M{"updated_at": time.Now()}
	if u.Title != nil {
		set["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.CodeSnippet != nil {
		set["code_snippet"] = *u.CodeSnippet
	}
	if u.Language != nil {
		set["language"] = normalize.Language(*u.Language)
	}
	if u.Tags != nil {
		set["tags"] = normalize.Tags(*u.Tags)
	}
	if u.Visibility != nil {
		set["visibility"] = *u.Visibility
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Project
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Delete removes a project and returns what was removed, or nil when
// nothing matched. A missing project is not an error.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var p models.Project
	err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ToggleResult is the membership state after a toggle.
type ToggleResult struct {
	Member bool
	Count  int
}

// ToggleLike flips userID's membership in the project's like set.
func (s *Store) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (ToggleResult, *models.Project, error) {
	return s.toggle(ctx, id, userID, fieldLikes)
}

// ToggleBookmark flips userID's membership in the project's bookmark set.
func (s *Store) ToggleBookmark(ctx context.Context, id, userID primitive.ObjectID) (ToggleResult, *models.Project, error) {
	return s.toggle(ctx, id, userID, fieldBookmarks)
}

// toggle is a single-document pipeline update that only rewrites field, so
// concurrent toggles by other users or on the other set are not lost.
// Private projects only match for their author and report ErrNotFound
// to everyone else.
func (s *Store) toggle(ctx context.Context, id, userID primitive.ObjectID, field string) (ToggleResult, *models.Project, error) {
	if userID.IsZero() {
		return ToggleResult{}, nil, errNoViewer
	}
	update := storeutil.ToggleMember(field, userID)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"author": 1, "title": 1, "visibility": 1, field: 1})

	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"visibility": bson.M{"$ne": models.VisibilityPrivate}},
			bson.M{"author": userID},
		},
	}
	var p models.Project
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ToggleResult{}, nil, ErrNotFound
		}
		return ToggleResult{}, nil, err
	}

	set := p.Likes
	if field == fieldBookmarks {
		set = p.Bookmarks
	}
	return ToggleResult{Member: storeutil.Contains(set, userID), Count: len(set)}, &p, nil
}

// ListFilter selects projects for List.
type ListFilter struct {
	Query    string // full-text search over title, description and tags
	Language string
	Tag      string

	// Author limits to one author's projects, private ones included when
	// Viewer is the author.
	Author *primitive.ObjectID
	// BookmarkedBy limits to projects bookmarked by a user.
	BookmarkedBy *primitive.ObjectID
	// Viewer is the caller; zero for anonymous.
	Viewer primitive.ObjectID

	Sort  string
	Page  int64
	Limit int64
}

func (f ListFilter) match() bson.M {
	m := bson.M{}
	if q := strings.TrimSpace(f.Query); q != "" {
		m["$text"] = bson.M{"$search": q}
	}
	if f.Language != "" {
		m["language"] = normalize.Language(f.Language)
	}
	if f.Tag != "" {
		m["tags"] = normalize.Tag(f.Tag)
	}
	if f.BookmarkedBy != nil {
		m["bookmarks"] = *f.BookmarkedBy
	}

	ownList := f.Author != nil && !f.Viewer.IsZero() && *f.Author == f.Viewer
	switch {
	case f.Author != nil:
		m["author"] = *f.Author
		if !ownList {
			m["visibility"] = models.VisibilityPublic
		}
	case !f.Viewer.IsZero():
		m["$or"] = bson.A{
			bson.M{"visibility": models.VisibilityPublic},
			bson.M{"author": f.Viewer},
		}
	default:
		m["visibility"] = models.VisibilityPublic
	}
	return m
}

// List returns one page of projects matching f and the total match count.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Project, int64, error) {
	f.Limit, f.Page = storeutil.Clamp(f.Limit, f.Page)
	match := f.match()

	total, err := s.c.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, err
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if f.Sort == SortPopular {
		sort = bson.D{{Key: "like_count", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{"like_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}}}}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$skip", Value: storeutil.Skip(f.Limit, f.Page)}},
		{{Key: "$limit", Value: f.Limit}},
		{{Key: "$project", Value: bson.M{"like_count": 0}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]models.Project, 0, f.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
