// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/devcanvas/devcanvas/internal/app/store/audit"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler provides audit log handlers.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	logger     *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		logger:     logger,
	}
}

// eventTypes lists the known event types per category.
func eventTypes() map[string][]string {
	return map[string][]string{
		audit.CategoryAuth: {
			audit.EventRegistered,
			audit.EventLoginSuccess,
			audit.EventLoginFailedUserNotFound,
			audit.EventLoginFailedWrongPassword,
			audit.EventLoginFailedUserDisabled,
			audit.EventLoginLockedOut,
			audit.EventLogout,
			audit.EventSessionsRevoked,
		},
		audit.CategoryContent: {
			audit.EventProjectDeleted,
			audit.EventVisibilityChanged,
			audit.EventCommentDeleted,
		},
		audit.CategoryAdmin: {
			audit.EventUserStatusChanged,
			audit.EventUserRoleChanged,
		},
	}
}

// Routes is mounted at /admin/audit.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(models.RoleAdmin))

	r.Get("/", h.list)
	r.Get("/event-types", h.types)

	return r
}

// item is one audit event with actor and subject names resolved.
type item struct {
	audit.Event
	ActorName string `json:"actorName,omitempty"`
	UserName  string `json:"userName,omitempty"`
}

type listResponse struct {
	Events []item `json:"events"`
	Total  int64  `json:"total"`
}

// list returns events newest first. Filters: ?category, ?event_type,
// ?user (subject id), ?since (RFC 3339 or YYYY-MM-DD) and ?limit.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := audit.QueryFilter{
		Category:  normalize.QueryParam(query.Get(r, "category")),
		EventType: normalize.QueryParam(query.Get(r, "event_type")),
		Limit:     reqparam.Int(r, "limit", defaultLimit),
	}
	if filter.Limit < 1 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Category != "" {
		if _, ok := eventTypes()[filter.Category]; !ok {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("category", "Unknown category."))
			return
		}
	}
	if raw := query.Get(r, "user"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("user", "Invalid user id."))
			return
		}
		filter.UserID = &id
	}
	if raw := query.Get(r, "since"); raw != "" {
		since, ok := parseSince(raw)
		if !ok {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("since", "Use RFC 3339 or YYYY-MM-DD."))
			return
		}
		filter.Since = &since
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	events, err := h.auditStore.Query(ctx, filter)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	total, err := h.auditStore.Count(ctx, filter)
	if err != nil {
		h.logger.Error("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	names := h.resolveNames(r, events)
	items := make([]item, len(events))
	for i, e := range events {
		items[i] = item{Event: e}
		if e.ActorID != nil {
			items[i].ActorName = names[*e.ActorID]
		}
		if e.UserID != nil {
			items[i].UserName = names[*e.UserID]
		}
	}
	jsonutil.OK(w, listResponse{Events: items, Total: total})
}

// resolveNames looks up display names for every user referenced by events.
// Lookup failures leave names empty.
func (h *Handler) resolveNames(r *http.Request, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			seen[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			seen[*e.UserID] = struct{}{}
		}
	}
	names := make(map[primitive.ObjectID]string, len(seen))
	if len(seen) == 0 {
		return names
	}
	ids := make([]primitive.ObjectID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()
	users, err := h.userStore.GetByIDs(ctx, ids)
	if err != nil {
		h.logger.Warn("failed to resolve audit user names", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}

func parseSince(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (h *Handler) types(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, eventTypes())
}
