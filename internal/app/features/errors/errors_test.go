package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) jsonutil.ErrorResponse {
	t.Helper()
	var body jsonutil.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	return body
}

func TestRouterFallbacks(t *testing.T) {
	h := NewHandler(zap.NewNop())
	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Get("/projects", func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantKind string
	}{
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound, "not_found"},
		{"wrong method", http.MethodDelete, "/projects", http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decodeError(t, rec).Error; got != tt.wantKind {
				t.Errorf("error kind = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestCSRFFailure(t *testing.T) {
	h := NewHandler(zap.NewNop())
	protect := csrf.Protect(
		[]byte("0123456789abcdef0123456789abcdef"),
		csrf.ErrorHandler(http.HandlerFunc(h.CSRFFailure)),
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler ran without a token")
	})

	rec := httptest.NewRecorder()
	protect(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if got := decodeError(t, rec).Error; got != "forbidden" {
		t.Errorf("error kind = %q, want forbidden", got)
	}
}
