// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates every collection in Collections and attaches its
// JSON-Schema validator. Deployments without collMod (some DocumentDB
// versions) keep the collection and skip the validator. All failures are
// collected into one error.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, c := range Collections() {
		if err := ensure(ctx, db, c); err != nil {
			problems = append(problems, c.Name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Collection pairs a collection name with its optional JSON-Schema validator.
type Collection struct {
	Name   string
	Schema bson.M
}

// Collections lists every collection the service owns.
func Collections() []Collection {
	return []Collection{
		{"users", usersSchema()},
		{"projects", projectsSchema()},
		{"comments", commentsSchema()},
		{"xp_events", xpEventsSchema()},
		{"communities", communitiesSchema()},
		{"conversations", conversationsSchema()},
		{"messages", messagesSchema()},
		{"audit_logs", nil},
		{"rate_limits", nil},
		{"sessions", nil},
		{"daily_stats", dailyStatsSchema()},
	}
}

func ensure(ctx context.Context, db *mongo.Database, c Collection) error {
	if _, err := ensureCollection(ctx, db, c.Name); err != nil {
		return err
	}
	if c.Schema == nil {
		return nil
	}
	err := setValidator(ctx, db, c.Name, c.Schema)
	if isNoSuchCommand(err) || isNotImplemented(err) {
		zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.Name))
		return nil
	}
	return err
}

// collectionExists asks the server for exactly one name.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection creates name unless it exists. created reports whether
// this call made it. A failed listing falls through to create, where a
// concurrent creator shows up as NamespaceExists.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	if exists, err := collectionExists(ctx, db, name); err == nil && exists {
		return false, nil
	}
	err = db.CreateCollection(ctx, name)
	switch {
	case err == nil:
		zap.L().Info("created collection", zap.String("collection", name))
		return true, nil
	case isNamespaceExistsErr(err):
		return false, nil
	default:
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

// matchesCommandError reports whether err carries one of codes or, in its
// command message or error text, one of phrases (case-insensitive).
func matchesCommandError(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	texts := []string{strings.ToLower(err.Error())}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
		texts = append(texts, strings.ToLower(ce.Message))
	}
	for _, t := range texts {
		for _, p := range phrases {
			if strings.Contains(t, p) {
				return true
			}
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return matchesCommandError(err, []int32{48}, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return matchesCommandError(err, []int32{59}, "no such command")
}

func isNotImplemented(err error) bool {
	return matchesCommandError(err, []int32{115}, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "role", "status", "xp", "tier"},
			"properties": bson.M{
				"name":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci": bson.M{"bsonType": "string"},
				"email":   bson.M{"bsonType": "string", "minLength": 3},
				"role":    bson.M{"enum": bson.A{"user", "admin"}},
				"status":  bson.M{"enum": bson.A{"active", "disabled"}},
				"xp":      bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"tier":    bson.M{"enum": tierEnum()},
			},
		},
	}
}

func tierEnum() bson.A {
	tiers := xp.AllTiers()
	out := make(bson.A, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"author", "title", "code_snippet", "language", "visibility"},
			"properties": bson.M{
				"author":       bson.M{"bsonType": "objectId"},
				"title":        bson.M{"bsonType": "string", "minLength": 1},
				"code_snippet": bson.M{"bsonType": "string", "minLength": 1},
				"language":     bson.M{"bsonType": "string", "minLength": 1},
				"visibility":   bson.M{"enum": bson.A{"public", "private"}},
				"likes":        bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"bookmarks":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"views":        bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
			},
		},
	}
}

func commentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"project", "author", "content"},
			"properties": bson.M{
				"project":        bson.M{"bsonType": "objectId"},
				"author":         bson.M{"bsonType": "objectId"},
				"content":        bson.M{"bsonType": "string", "minLength": 1},
				"parent_comment": bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func xpEventsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"key", "user_id", "amount", "applied"},
			"properties": bson.M{
				"key":     bson.M{"bsonType": "string", "minLength": 1},
				"user_id": bson.M{"bsonType": "objectId"},
				"amount":  bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 1},
				"applied": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func communitiesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"slug", "name"},
			"properties": bson.M{
				"slug":    bson.M{"bsonType": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
				"name":    bson.M{"bsonType": "string", "minLength": 1},
				"members": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func conversationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"participants", "participant_key"},
			"properties": bson.M{
				"participants":    bson.M{"bsonType": "array", "minItems": 2, "items": bson.M{"bsonType": "objectId"}},
				"participant_key": bson.M{"bsonType": "string", "minLength": 1},
			},
		},
	}
}

func messagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"conversation", "sender", "body"},
			"properties": bson.M{
				"conversation": bson.M{"bsonType": "objectId"},
				"sender":       bson.M{"bsonType": "objectId"},
				"body":         bson.M{"bsonType": "string", "minLength": 1},
			},
		},
	}
}

func dailyStatsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"date", "stat_type"},
			"properties": bson.M{
				"date":      bson.M{"bsonType": "date"},
				"stat_type": bson.M{"enum": bson.A{"content", "jobs"}},
				"counters":  bson.M{"bsonType": "object"},
			},
		},
	}
}
