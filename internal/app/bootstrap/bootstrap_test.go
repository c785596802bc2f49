package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/waffle/config"
	errorsfeature "github.com/devcanvas/devcanvas/internal/app/features/errors"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"go.uber.org/zap"
)

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "devcanvas",
		JWTSecret:     strings.Repeat("s", auth.MinSecretLength),
		DefaultLocale: "en",
		AuditLogAuth:  "all",
		AuditLogAdmin: "db",
	}
}

func TestValidateConfig(t *testing.T) {
	core := &config.CoreConfig{Env: "dev"}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(*AppConfig) {}, false},
		{"bad mongo uri", func(c *AppConfig) { c.MongoURI = "postgres://nope" }, true},
		{"short jwt secret", func(c *AppConfig) { c.JWTSecret = "short" }, true},
		{"unsupported locale", func(c *AppConfig) { c.DefaultLocale = "de" }, true},
		{"empty locale", func(c *AppConfig) { c.DefaultLocale = "" }, false},
		{"unknown audit destination", func(c *AppConfig) { c.AuditLogContent = "syslog" }, true},
		{"audit off", func(c *AppConfig) { c.AuditLogAuth = "off" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(core, cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func newCSRFHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager(strings.Repeat("k", 40), "dc-test", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	cfg := validConfig()
	cfg.CSRFKey = strings.Repeat("c", 32)

	mw := csrfMiddleware(cfg, sm, false, errorsfeature.NewHandler(logger))
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestCSRF_BearerRequestsSkipCheck(t *testing.T) {
	h := newCSRFHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/projects", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Header().Get(CSRFHeader) != "" {
		t.Error("bearer request should not receive a CSRF token")
	}
}

func TestCSRF_AnonymousGetsToken(t *testing.T) {
	h := newCSRFHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Header().Get(CSRFHeader) == "" {
		t.Error("expected a CSRF token header")
	}
}

func TestCSRF_CookieRequestWithoutTokenRejected(t *testing.T) {
	h := newCSRFHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/projects", nil)
	req.AddCookie(&http.Cookie{Name: "dc-test", Value: "session"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
