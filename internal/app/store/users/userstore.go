// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/app/system/status"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// recentXPWindow bounds recent_xp_keys. An event older than the window that
// is replayed again is caught by the xp_events unique key instead.
const recentXPWindow = 256

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrInvalidXPAmount is returned for zero or negative awards.
	ErrInvalidXPAmount = errors.New("xp amount must be positive")
	errBadRole         = errors.New("invalid role")
	errBadStatus       = errors.New(`status must be "active"|"disabled"`)
)

// publicProjection hides credentials and bookkeeping from list reads.
var publicProjection = bson.M{"password_hash": 0, "recent_xp_keys": 0}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Collection exposes the underlying collection for transactional callers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by email address (case-insensitive).
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads multiple users by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// Create inserts a new user after normalizing & validating fields.
// New users always start at zero XP in the lowest tier.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)

	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = status.Active
	}
	if !models.IsValidRole(u.Role) {
		return models.User{}, errBadRole
	}
	if !status.IsValid(u.Status) {
		return models.User{}, errBadStatus
	}
	if u.Preferences == (models.Preferences{}) {
		u.Preferences = models.DefaultPreferences()
	}

	u.XP = 0
	u.Tier = xp.TierFor(0)
	u.RecentXPKeys = nil

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// EmailExists reports whether a user is registered with email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ProfileUpdate holds the user-editable fields.
// All fields are pointers - nil means "don't update this field".
// XP, tier, role and credentials are deliberately absent.
type ProfileUpdate struct {
	Name      *string
	Bio       *string
	Location  *string
	Website   *string
	GitHub    *string
	AvatarURL *string
	Skills    *[]string

	Theme              *string
	Language           *string
	EmailNotifications *bool
	PublicProfile      *bool
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p == ProfileUpdate{}
}

// UpdateProfile applies p and returns the updated user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, p ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now()}

	if p.Name != nil {
		name := normalize.Name(*p.Name)
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if p.Bio != nil {
		set["bio"] = *p.Bio
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Website != nil {
		set["website"] = *p.Website
	}
	if p.GitHub != nil {
		set["github"] = *p.GitHub
	}
	if p.AvatarURL != nil {
		set["avatar_url"] = *p.AvatarURL
	}
	if p.Skills != nil {
		set["skills"] = *p.Skills
	}
	if p.Theme != nil {
		set["preferences.theme"] = *p.Theme
	}
	if p.Language != nil {
		set["preferences.language"] = *p.Language
	}
	if p.EmailNotifications != nil {
		set["preferences.email_notifications"] = *p.EmailNotifications
	}
	if p.PublicProfile != nil {
		set["preferences.public_profile"] = *p.PublicProfile
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ApplyXP adds amount to the user's XP and recomputes the tier in the same
// single-document update. It is the only write path for xp and tier.
//
// eventKey makes the call idempotent: a key already recorded on the user is
// not applied again and ApplyXP returns (false, nil).
func (s *Store) ApplyXP(ctx context.Context, id primitive.ObjectID, amount int64, eventKey string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidXPAmount
	}

	filter := bson.M{
		"_id":            id,
		"recent_xp_keys": bson.M{"$ne": eventKey},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"xp": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$xp", 0}}, amount}},
			"recent_xp_keys": bson.M{"$slice": bson.A{
				bson.M{"$concatArrays": bson.A{
					bson.M{"$ifNull": bson.A{"$recent_xp_keys", bson.A{}}},
					bson.A{eventKey},
				}},
				-recentXPWindow,
			}},
			"updated_at": time.Now(),
		}}},
		{{Key: "$set", Value: bson.M{"tier": xp.SwitchExpr("$xp")}}},
	}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	// Either the user is gone or the key was already applied.
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// Leaderboard returns users ordered by XP (highest first), ties broken by
// registration order. An empty tier means all tiers.
func (s *Store) Leaderboard(ctx context.Context, tier xp.Tier, limit int64) ([]models.User, error) {
	filter := bson.M{"status": status.Active}
	if tier != "" {
		filter["tier"] = tier
	}
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "xp", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetProjection(publicProjection)
	return s.Find(ctx, filter, opts)
}

// Find returns users matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of users matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// CountActiveAdmins returns the number of users with role=admin and status=active.
func (s *Store) CountActiveAdmins(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"role":   models.RoleAdmin,
		"status": status.Active,
	})
}

// SetStatus changes a user's account status. Disabled users can no longer
// sign in and lose existing sessions on their next request.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, st string) error {
	st = normalize.Status(st)
	if !status.IsValid(st) {
		return errBadStatus
	}
	return s.setField(ctx, id, "status", st)
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	role = normalize.Role(role)
	if !models.IsValidRole(role) {
		return errBadRole
	}
	return s.setField(ctx, id, "role", role)
}

func (s *Store) setField(ctx context.Context, id primitive.ObjectID, field, value string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		field:        value,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPasswordHash replaces the stored bcrypt hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return s.setField(ctx, id, "password_hash", hash)
}
