// internal/app/system/auth/session.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultSessionName = "devcanvas-session"

// Cookie session values.
const (
	keySignedIn = "signed_in"
	keyUserID   = "uid"
	keyRole     = "role"
	keyToken    = "sid"
)

// SessionConfigError is returned when the cookie key is unusable.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string { return e.Message }

// SessionManager resolves the caller from a bearer token or the signed
// session cookie and manages the cookie lifecycle.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	maxAge time.Duration
	logger *zap.Logger

	users  UserFetcher
	tokens *TokenIssuer
}

// NewSessionManager builds a cookie-backed SessionManager. With secure set
// (production) a short or placeholder key is rejected and cookies carry the
// Secure flag; otherwise a weak key only logs a warning.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if err := checkSessionKey(sessionKey, secure, logger); err != nil {
		return nil, err
	}
	if name == "" {
		name = defaultSessionName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session manager initialized",
		zap.String("name", name),
		zap.String("domain", domain),
		zap.Bool("secure", secure))

	return &SessionManager{store: store, name: name, maxAge: maxAge, logger: logger}, nil
}

// placeholderKeyFragments mark keys copied from sample configs.
var placeholderKeyFragments = []string{
	"dev-only", "change-me", "placeholder", "default", "example",
	"insecure", "test-key", "secret123", "password",
}

func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range placeholderKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func checkSessionKey(key string, secure bool, logger *zap.Logger) error {
	if key == "" {
		return &SessionConfigError{Message: "session key is empty; provide at least 32 random characters"}
	}
	placeholder := isDefaultKey(key)
	if len(key) >= 32 && !placeholder {
		return nil
	}
	if secure {
		return &SessionConfigError{Message: "session key is too weak for production; provide at least 32 random characters that are not a sample value"}
	}
	logger.Warn("session key is weak; production requires 32+ random characters",
		zap.Int("length", len(key)),
		zap.Bool("placeholder", placeholder))
	return nil
}

func (sm *SessionManager) SessionName() string { return sm.name }

func (sm *SessionManager) MaxAge() time.Duration { return sm.maxAge }

// SetUserFetcher makes every request reload the user record, so role changes
// and disabled accounts apply immediately.
func (sm *SessionManager) SetUserFetcher(uf UserFetcher) { sm.users = uf }

// SetTokenIssuer enables bearer-token principals.
func (sm *SessionManager) SetTokenIssuer(ti *TokenIssuer) { sm.tokens = ti }

// GetSession returns the raw cookie session.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// RequireSignedIn is the package-level RequireSignedIn.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return RequireSignedIn(next)
}

// LoadSessionUser attaches the caller to the request context. A bearer
// header wins over the cookie; an invalid bearer token leaves the request
// anonymous rather than falling back to the cookie.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u *SessionUser
		if raw, ok := BearerToken(r); ok {
			u = sm.fromBearer(r, raw)
		} else {
			u = sm.fromCookie(w, r)
		}
		if u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) fromBearer(r *http.Request, raw string) *SessionUser {
	if sm.tokens == nil {
		return nil
	}
	claims, err := sm.tokens.Validate(raw)
	if err != nil {
		sm.logger.Debug("bearer token rejected", zap.String("path", r.URL.Path), zap.Error(err))
		return nil
	}

	u := &SessionUser{ID: claims.Subject, Role: claims.Role}
	if sm.users != nil {
		if u = sm.users.FetchUser(r.Context(), claims.Subject); u == nil {
			return nil
		}
	}
	u.Via = ViaBearer
	return u
}

func (sm *SessionManager) fromCookie(w http.ResponseWriter, r *http.Request) *SessionUser {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sm.logCookieFault(r, err)
	}
	if signedIn, _ := sess.Values[keySignedIn].(bool); !signedIn {
		return nil
	}
	userID := sessionString(sess, keyUserID)
	if userID == "" {
		return nil
	}

	u := &SessionUser{ID: userID, Role: sessionString(sess, keyRole)}
	if sm.users != nil {
		if u = sm.users.FetchUser(r.Context(), userID); u == nil {
			sm.logger.Info("session invalidated: user not found or disabled",
				zap.String("user_id", userID),
				zap.String("path", r.URL.Path))
			clearSession(sess)
			_ = sess.Save(r, w)
			return nil
		}
	}
	u.Via = ViaSession
	u.Token = sessionString(sess, keyToken)
	return u
}

// CreateSession signs the user in on this client and returns the tracking
// token stored in the cookie.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role string) (string, error) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sess, _ = sm.store.New(r, sm.name)
	}
	token, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}

	sess.Values[keySignedIn] = true
	sess.Values[keyUserID] = userID.Hex()
	sess.Values[keyRole] = role
	sess.Values[keyToken] = token
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return token, nil
}

// DestroySession expires the cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return
	}
	clearSession(sess)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

// GenerateSessionToken returns 32 random bytes, URL-safe base64 encoded.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func clearSession(sess *sessions.Session) {
	sess.Values[keySignedIn] = false
	delete(sess.Values, keyUserID)
	delete(sess.Values, keyRole)
	delete(sess.Values, keyToken)
}

func sessionString(s *sessions.Session, key string) string {
	v, _ := s.Values[key].(string)
	return v
}

// cookieFault describes why a session cookie could not be read.
type cookieFault struct {
	category string
	level    zapcore.Level
	message  string
}

var (
	faultExpired  = cookieFault{"expired", zapcore.DebugLevel, "session expired, starting fresh session"}
	faultTampered = cookieFault{"mac_invalid", zapcore.WarnLevel, "session MAC validation failed (possible tampering)"}
	faultDecrypt  = cookieFault{"decrypt_failed", zapcore.InfoLevel, "session decode failed, starting fresh session"}
	faultDecode   = cookieFault{"decode_failed", zapcore.InfoLevel, "session decode failed, starting fresh session"}
	faultBackend  = cookieFault{"backend", zapcore.ErrorLevel, "session store error, starting fresh session"}
	faultUnknown  = cookieFault{"unknown", zapcore.ErrorLevel, "session store error, starting fresh session"}
)

// decodeMarkers are matched against securecookie decode messages in order.
var decodeMarkers = []struct {
	substr string
	fault  cookieFault
}{
	{"expired timestamp", faultExpired},
	{"not valid", faultTampered},
	{"mac", faultTampered},
	{"decrypt", faultDecrypt},
}

// classifyCookieError maps a securecookie failure to a cookieFault. Decode
// errors are a normal effect of key rotation or expiry; anything else
// points at the store.
func classifyCookieError(err error) cookieFault {
	scErr, ok := err.(securecookie.Error)
	if !ok {
		return faultUnknown
	}
	if !scErr.IsDecode() {
		return faultBackend
	}
	msg := strings.ToLower(err.Error())
	for _, m := range decodeMarkers {
		if strings.Contains(msg, m.substr) {
			return m.fault
		}
	}
	return faultDecode
}

func (sm *SessionManager) logCookieFault(r *http.Request, err error) {
	f := classifyCookieError(err)
	ce := sm.logger.Check(f.level, f.message)
	if ce == nil {
		return
	}
	fields := []zap.Field{zap.String("category", f.category), zap.String("path", r.URL.Path)}
	switch f {
	case faultTampered:
		fields = append(fields, zap.String("remote_addr", r.RemoteAddr), zap.String("user_agent", r.UserAgent()))
	case faultBackend, faultUnknown:
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}
