package reqparam

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestObjectID(t *testing.T) {
	id := primitive.NewObjectID()
	r := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", id.Hex())

	got, err := ObjectID(r, "id", "project")
	if err != nil || got != id {
		t.Errorf("ObjectID() = %v, %v, want %v", got, err, id)
	}

	bad := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope")
	if _, err := ObjectID(bad, "id", "project"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ObjectID(malformed) error = %v, want ErrNotFound", err)
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		url       string
		wantPage  int64
		wantLimit int64
	}{
		{"/", 1, 20},
		{"/?page=3&limit=5", 3, 5},
		{"/?page=0&limit=0", 1, 20},
		{"/?page=-2&limit=500", 1, 100},
		{"/?page=abc&limit=x", 1, 20},
		{"/?page=4611686018427387904&limit=100", math.MaxInt64 / 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			page, limit := Page(httptest.NewRequest(http.MethodGet, tt.url, nil))
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Errorf("Page() = %d/%d, want %d/%d", page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	if p.Pages != 3 || p.Total != 25 || p.Page != 2 || p.Limit != 10 {
		t.Errorf("NewPagination() = %+v", p)
	}
	if NewPagination(1, 10, 0).Pages != 0 {
		t.Error("no items should mean zero pages")
	}
}
