// internal/app/store/communities/store.go
package communitystore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/devcanvas/devcanvas/internal/app/store/storeutil"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no community matches.
	ErrNotFound = errors.New("community not found")
	// ErrDuplicateSlug is returned when the slug is taken.
	ErrDuplicateSlug = errors.New("a community with this name already exists")
	errEmptySlug     = errors.New("community name must contain letters or digits")
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a URL slug.
func Slugify(name string) string {
	s := nonSlug.ReplaceAllString(text.Fold(name), "-")
	return strings.Trim(s, "-")
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("communities")}
}

// Create inserts a community. The slug is derived from the name when empty.
func (s *Store) Create(ctx context.Context, c models.Community) (models.Community, error) {
	c.ID = primitive.NewObjectID()
	c.Name = strings.TrimSpace(c.Name)
	c.NameCI = text.Fold(c.Name)
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return models.Community{}, errEmptySlug
	}
	if c.Members == nil {
		c.Members = []primitive.ObjectID{}
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Community{}, ErrDuplicateSlug
		}
		return models.Community{}, err
	}
	return c, nil
}

// Exists reports whether a community with slug exists.
func (s *Store) Exists(ctx context.Context, slug string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	return n > 0, err
}

// GetBySlug loads a community by slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	var c models.Community
	if err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns communities whose folded name contains q, ordered by name.
func (s *Store) List(ctx context.Context, q string, page, limit int64) ([]models.Community, int64, error) {
	filter := bson.M{}
	if q = strings.TrimSpace(q); q != "" {
		filter["name_ci"] = bson.M{"$regex": regexp.QuoteMeta(text.Fold(q))}
	}
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := []models.Community{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ToggleMembership flips userID's membership and returns the new state.
func (s *Store) ToggleMembership(ctx context.Context, slug string, userID primitive.ObjectID) (joined bool, count int, err error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"members": 1})
	var c models.Community
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"slug": slug}, storeutil.ToggleMember("members", userID), opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, 0, ErrNotFound
		}
		return false, 0, err
	}
	return storeutil.Contains(c.Members, userID), len(c.Members), nil
}
