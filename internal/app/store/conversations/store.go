// internal/app/store/conversations/store.go
package conversationstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/devcanvas/devcanvas/internal/app/store/storeutil"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no conversation matches or the caller is
	// not a participant.
	ErrNotFound = errors.New("conversation not found")
	errTooFew   = errors.New("a conversation needs at least two participants")
)

// Store manages conversations and their messages.
type Store struct {
	convs *mongo.Collection
	msgs  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		convs: db.Collection("conversations"),
		msgs:  db.Collection("messages"),
	}
}

// ParticipantKey returns a canonical key for a participant set.
func ParticipantKey(ids []primitive.ObjectID) ([]primitive.ObjectID, string) {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	uniq := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Hex() < uniq[j].Hex() })
	parts := make([]string, len(uniq))
	for i, id := range uniq {
		parts[i] = id.Hex()
	}
	return uniq, strings.Join(parts, ":")
}

// Open returns the conversation for the participant set, creating it when
// none exists. created reports whether a new one was made.
func (s *Store) Open(ctx context.Context, participants []primitive.ObjectID) (conv *models.Conversation, created bool, err error) {
	ids, key := ParticipantKey(participants)
	if len(ids) < 2 {
		return nil, false, errTooFew
	}
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"participants":    ids,
			"participant_key": key,
			"created_at":      now,
			"updated_at":      now,
		},
	}
	res, err := s.convs.UpdateOne(ctx, bson.M{"participant_key": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, err
	}
	var c models.Conversation
	if err := s.convs.FindOne(ctx, bson.M{"participant_key": key}).Decode(&c); err != nil {
		return nil, false, err
	}
	return &c, res.UpsertedCount == 1, nil
}

// GetForParticipant loads a conversation the user belongs to.
func (s *Store) GetForParticipant(ctx context.Context, id, userID primitive.ObjectID) (*models.Conversation, error) {
	var c models.Conversation
	err := s.convs.FindOne(ctx, bson.M{"_id": id, "participants": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListForUser returns the user's conversations, most recent activity first.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]models.Conversation, error) {
	opts := storeutil.Paginate(limit, page).SetSort(bson.D{
		{Key: "last_message_at", Value: -1},
		{Key: "updated_at", Value: -1},
	})
	cur, err := s.convs.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Conversation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMessage stores a message and bumps the conversation's activity time.
// The caller must already have checked participation.
func (s *Store) AddMessage(ctx context.Context, m models.Message) (models.Message, error) {
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now()
	if _, err := s.msgs.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	_, err := s.convs.UpdateOne(ctx,
		bson.M{"_id": m.Conversation},
		bson.M{"$set": bson.M{"last_message_at": m.CreatedAt, "updated_at": m.CreatedAt}},
	)
	if err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// ListMessages returns a page of messages, newest first, and the total.
func (s *Store) ListMessages(ctx context.Context, convID primitive.ObjectID, page, limit int64) ([]models.Message, int64, error) {
	filter := bson.M{"conversation": convID}
	total, err := s.msgs.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.msgs.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
