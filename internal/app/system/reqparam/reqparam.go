// Package reqparam reads the path and query parameters shared by the JSON
// handlers: object ids from chi URL params, and page/limit pairs.
package reqparam

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/devcanvas/devcanvas/internal/app/store/storeutil"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectID parses the chi URL param name. A malformed id is reported as not
// found: to the caller it names nothing.
func ObjectID(r *http.Request, name, resource string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperror.NotFound(resource, raw)
	}
	return id, nil
}

// Int returns the integer query value key, or def when absent or malformed.
func Int(r *http.Request, key string, def int64) int64 {
	v := query.Get(r, key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Page returns the clamped 1-based page and page size from ?page&limit.
func Page(r *http.Request) (page, limit int64) {
	limit, page = storeutil.Clamp(Int(r, "limit", storeutil.DefaultLimit), Int(r, "page", 1))
	return page, limit
}

// Pagination is the pagination block of list responses.
type Pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination builds the pagination block for total items.
func NewPagination(page, limit, total int64) Pagination {
	return Pagination{Page: page, Limit: limit, Total: total, Pages: storeutil.Pages(total, limit)}
}
