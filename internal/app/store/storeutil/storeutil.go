// internal/app/store/storeutil/storeutil.go
package storeutil

import (
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Page limits shared by list endpoints.
const (
	DefaultLimit int64 = 20
	MaxLimit     int64 = 100
)

// Clamp normalizes a 1-based page and a page size. The page is capped so
// that Skip never overflows; a capped page is simply past the last result.
func Clamp(limit, page int64) (int64, int64) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = 1
	}
	if maxPage := math.MaxInt64 / limit; page > maxPage {
		page = maxPage
	}
	return limit, page
}

// Skip returns the number of documents before a 1-based page, after Clamp.
func Skip(limit, page int64) int64 {
	limit, page = Clamp(limit, page)
	return (page - 1) * limit
}

// Paginate returns *options.FindOptions with skip/limit given a 1-based page.
func Paginate(limit, page int64) *options.FindOptions {
	limit, page = Clamp(limit, page)
	return options.Find().SetLimit(limit).SetSkip((page - 1) * limit)
}

// Pages returns the number of pages needed for total items.
func Pages(total, limit int64) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ToggleMember builds an update pipeline that removes member from the array
// field if present and appends it otherwise. Only field is rewritten.
func ToggleMember(field string, member primitive.ObjectID) mongo.Pipeline {
	current := bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			field: bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{member, current}},
				bson.M{"$setDifference": bson.A{current, bson.A{member}}},
				bson.M{"$concatArrays": bson.A{current, bson.A{member}}},
			}},
		}}},
	}
}

// Contains reports whether id is in ids.
func Contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
