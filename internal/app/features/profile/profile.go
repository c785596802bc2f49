// internal/app/features/profile/profile.go
package profile

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/authutil"
	"github.com/devcanvas/devcanvas/internal/app/system/inputval"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/locale"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Field limits for profile edits.
const (
	maxBioLength      = 500
	maxLocationLength = 100
	maxURLLength      = 200
	maxSkills         = 20
	maxSkillLength    = 30
)

// Handler serves the caller's own account and public profiles.
type Handler struct {
	userStore     *userstore.Store
	sessionsStore *sessions.Store
	auditLogger   *auditlog.Logger
	logger        *zap.Logger
}

// NewHandler creates a profile Handler.
func NewHandler(db *mongo.Database, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		userStore:     userstore.New(db),
		sessionsStore: sessions.New(db),
		auditLogger:   auditLogger,
		logger:        logger,
	}
}

// Routes returns the caller's account routes, mounted at /user.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.showProfile)
	r.Patch("/", h.updateProfile)
	r.Delete("/", h.deleteAccount)
	r.Post("/password", h.changePassword)

	r.Get("/sessions", h.listSessions)
	r.Delete("/sessions", h.revokeOtherSessions)
	return r
}

// PublicRoutes returns the public profile routes, mounted at /users.
func PublicRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.showPublic)
	return r
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	user, err := h.userStore.GetByID(ctx, auth.ViewerID(r))
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("user", ""))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, user)
}

// updateProfileInput is the allow-list for PATCH /user. Fields not listed
// here (xp, tier, role, email, password) are ignored when present.
type updateProfileInput struct {
	Name        *string   `json:"name"`
	Bio         *string   `json:"bio"`
	Location    *string   `json:"location"`
	Website     *string   `json:"website"`
	GitHub      *string   `json:"github"`
	AvatarURL   *string   `json:"avatarUrl"`
	Skills      *[]string `json:"skills"`
	Preferences *struct {
		Theme              *string `json:"theme"`
		Language           *string `json:"language"`
		EmailNotifications *bool   `json:"emailNotifications"`
		PublicProfile      *bool   `json:"publicProfile"`
	} `json:"preferences"`
}

func (in updateProfileInput) toUpdate() (userstore.ProfileUpdate, error) {
	var p userstore.ProfileUpdate

	if in.Name != nil {
		name := normalize.Name(*in.Name)
		if name == "" {
			return p, apperror.ValidationFailed("name", "Name cannot be empty.")
		}
		if utf8.RuneCountInString(name) > authutil.MaxNameLength {
			return p, apperror.ValidationFailed("name", fmt.Sprintf("Name must be at most %d characters.", authutil.MaxNameLength))
		}
		p.Name = &name
	}

	var err error
	if p.Bio, err = trimmedMax(in.Bio, "bio", "Bio", maxBioLength); err != nil {
		return p, err
	}
	if p.Location, err = trimmedMax(in.Location, "location", "Location", maxLocationLength); err != nil {
		return p, err
	}
	if p.GitHub, err = trimmedMax(in.GitHub, "github", "GitHub", maxLocationLength); err != nil {
		return p, err
	}
	if p.Website, err = optionalURL(in.Website, "website", "Website"); err != nil {
		return p, err
	}
	if p.AvatarURL, err = optionalURL(in.AvatarURL, "avatarUrl", "Avatar URL"); err != nil {
		return p, err
	}

	if in.Skills != nil {
		skills := normalize.Tags(*in.Skills)
		if len(skills) > maxSkills {
			return p, apperror.ValidationFailed("skills", fmt.Sprintf("At most %d skills are allowed.", maxSkills))
		}
		for _, s := range skills {
			if utf8.RuneCountInString(s) > maxSkillLength {
				return p, apperror.ValidationFailed("skills", fmt.Sprintf("Each skill must be at most %d characters.", maxSkillLength))
			}
		}
		p.Skills = &skills
	}

	if prefs := in.Preferences; prefs != nil {
		if prefs.Theme != nil {
			theme := normalize.Theme(*prefs.Theme)
			if !inputval.IsValidTheme(theme) {
				return p, apperror.ValidationFailed("preferences.theme", "Theme must be light, dark or system.")
			}
			p.Theme = &theme
		}
		if prefs.Language != nil {
			code, ok := locale.Match(*prefs.Language)
			if !ok {
				return p, apperror.ValidationFailed("preferences.language", "Language is not supported.")
			}
			p.Language = &code
		}
		p.EmailNotifications = prefs.EmailNotifications
		p.PublicProfile = prefs.PublicProfile
	}
	return p, nil
}

func trimmedMax(v *string, field, label string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if utf8.RuneCountInString(s) > max {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %d characters.", label, max))
	}
	return &s, nil
}

// optionalURL accepts an empty string (clears the field) or an http(s) URL.
func optionalURL(v *string, field, label string) (*string, error) {
	s, err := trimmedMax(v, field, label, maxURLLength)
	if err != nil || s == nil || *s == "" {
		return s, err
	}
	if !inputval.IsValidHTTPURL(*s) {
		return nil, apperror.ValidationFailed(field, label+" must be a valid http or https URL.")
	}
	return s, nil
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in updateProfileInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	update, err := in.toUpdate()
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	// An empty patch still bumps updated_at and returns the current profile.
	user, err := h.userStore.UpdateProfile(ctx, auth.ViewerID(r), update)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("user", ""))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, user)
}

// deleteAccount is reserved; account removal is not offered yet.
func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	jsonutil.NotImplemented(w, "Account deletion is not available.")
}

type changePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// changePassword replaces the password and signs out every other session.
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	principal, _ := auth.CurrentUser(r)
	user, err := h.userStore.GetByID(ctx, principal.UserID())
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("user", ""))
		return
	}

	if !authutil.CheckPassword(in.CurrentPassword, user.PasswordHash) {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("currentPassword", "Current password is incorrect."))
		return
	}
	if err := authutil.ValidatePassword(in.NewPassword); err != nil {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("newPassword", err.Error()))
		return
	}
	if authutil.CheckPassword(in.NewPassword, user.PasswordHash) {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("newPassword", "New password cannot be the same as your current password."))
		return
	}

	hash, err := authutil.HashPassword(in.NewPassword)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.userStore.SetPasswordHash(ctx, user.ID, hash); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	closed, err := h.sessionsStore.CloseOthers(ctx, user.ID, principal.Token)
	if err != nil {
		h.logger.Warn("failed to close sessions after password change", zap.Error(err))
	} else if closed > 0 {
		h.auditLogger.SessionsRevoked(ctx, r, user.ID, closed)
	}
	jsonutil.OK(w, map[string]bool{"success": true})
}

type sessionRow struct {
	sessions.Session
	Device  string `json:"device"`
	Current bool   `json:"current"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	principal, _ := auth.CurrentUser(r)
	open, err := h.sessionsStore.ListOpen(ctx, principal.UserID())
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	rows := make([]sessionRow, 0, len(open))
	for _, s := range open {
		rows = append(rows, sessionRow{
			Session: s,
			Device:  parseDevice(s.UserAgent),
			Current: principal.Token != "" && s.Token == principal.Token,
		})
	}
	jsonutil.OK(w, map[string]any{"sessions": rows})
}

// revokeOtherSessions closes every session except the caller's own.
func (h *Handler) revokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	principal, _ := auth.CurrentUser(r)
	closed, err := h.sessionsStore.CloseOthers(ctx, principal.UserID(), principal.Token)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	h.auditLogger.SessionsRevoked(ctx, r, principal.UserID(), closed)
	jsonutil.OK(w, map[string]int64{"closed": closed})
}

// showPublic returns another user's public profile. Users who turned their
// profile private are only visible to themselves.
func (h *Handler) showPublic(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "id", "user")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	user, err := h.userStore.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("user", id.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if !user.Preferences.PublicProfile && auth.ViewerID(r) != user.ID {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("user", id.Hex()))
		return
	}
	jsonutil.OK(w, user.Public())
}

// parseDevice extracts a simple device description from the user agent string.
func parseDevice(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "android"):
		if strings.Contains(ua, "mobile") {
			return "Android Phone"
		}
		return "Android Tablet"
	}

	browser := ""
	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "curl"):
		return "curl"
	}

	osName := ""
	switch {
	case strings.Contains(ua, "windows"):
		osName = "Windows"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		osName = "Mac"
	case strings.Contains(ua, "linux"):
		osName = "Linux"
	}

	switch {
	case osName != "" && browser != "":
		return osName + " (" + browser + ")"
	case osName != "":
		return osName
	case browser != "":
		return browser
	}
	return "Unknown Device"
}
