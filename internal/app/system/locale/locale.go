// Package locale negotiates the request locale and handles /{locale}/ path
// prefixes.
package locale

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	// LangParam is the query parameter used to select a locale.
	LangParam = "lang"
	// CookieName stores the caller's locale preference.
	CookieName = "dc_lang"
)

// Supported locale codes in matcher order. The first one is the fallback.
var codes = []string{"en", "es", "fr"}

var (
	supported = []language.Tag{language.English, language.Spanish, language.French}
	matcher   = language.NewMatcher(supported)
)

// Codes returns the supported locale codes.
func Codes() []string {
	return append([]string(nil), codes...)
}

// IsSupported reports whether code is one of the supported locale codes.
func IsSupported(code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Match returns the supported code closest to value, e.g. "es-MX" => "es".
func Match(value string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return "", false
	}
	return codes[idx], true
}

// Negotiate picks a locale for r: ?lang, then the cookie, then
// Accept-Language, then fallback.
func Negotiate(r *http.Request, fallback string) string {
	if v := r.URL.Query().Get(LangParam); v != "" {
		if code, ok := Match(v); ok {
			return code
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		if code, ok := Match(c.Value); ok {
			return code
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			if _, idx, conf := matcher.Match(tags...); conf != language.No {
				return codes[idx]
			}
		}
	}
	return fallback
}

type ctxKey struct{}

// FromContext returns the locale stored by Middleware, or "en".
func FromContext(ctx context.Context) string {
	if code, ok := ctx.Value(ctxKey{}).(string); ok {
		return code
	}
	return codes[0]
}

// WithLocale returns ctx carrying code.
func WithLocale(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxKey{}, code)
}

// Config controls Middleware.
type Config struct {
	Default string   // fallback code; unsupported values fall back to "en"
	Skip    []string // path prefixes left untouched (health, metrics)
}

// splitPrefix returns the locale segment and the remaining path when p starts
// with a supported locale.
func splitPrefix(p string) (code, rest string, ok bool) {
	trimmed := strings.TrimPrefix(p, "/")
	seg, after, _ := strings.Cut(trimmed, "/")
	if !IsSupported(seg) {
		return "", p, false
	}
	return seg, "/" + after, true
}

// Middleware strips a leading locale segment, stores the locale in the
// request context and sets Content-Language. Browser navigations without a
// prefix are redirected to the negotiated one.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	fallback := cfg.Default
	if !IsSupported(fallback) {
		fallback = codes[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range cfg.Skip {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			code, rest, ok := splitPrefix(r.URL.Path)
			if ok {
				r2 := r.Clone(WithLocale(r.Context(), code))
				r2.URL.Path = rest
				r2.URL.RawPath = ""
				w.Header().Set("Content-Language", code)
				setCookie(w, r, code)
				next.ServeHTTP(w, r2)
				return
			}

			code = Negotiate(r, fallback)
			if isNavigation(r) {
				target := "/" + code + r.URL.Path
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}

			w.Header().Set("Content-Language", code)
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), code)))
		})
	}
}

func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func setCookie(w http.ResponseWriter, r *http.Request, code string) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value == code {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    code,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
