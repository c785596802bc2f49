// internal/app/features/systemusers/systemusers.go
package systemusers

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/devcanvas/devcanvas/internal/app/store/sessions"
	"github.com/devcanvas/devcanvas/internal/app/store/storeutil"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/status"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler provides the admin user management endpoints.
type Handler struct {
	userStore    *userstore.Store
	sessionStore *sessions.Store
	auditLogger  *auditlog.Logger
	logger       *zap.Logger
}

// NewHandler creates a new system users Handler.
func NewHandler(db *mongo.Database, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		userStore:    userstore.New(db),
		sessionStore: sessions.New(db),
		auditLogger:  auditLogger,
		logger:       logger,
	}
}

// Routes returns a chi.Router with the admin user routes, mounted at
// /admin/users.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(models.RoleAdmin))

	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Patch("/{id}", h.update)
	return r
}

// userRow is a user as admins see it.
type userRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	XP        int64     `json:"xp"`
	Tier      xp.Tier   `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
}

func toRow(u models.User) userRow {
	return userRow{
		ID:        u.ID.Hex(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      normalize.Role(u.Role),
		Status:    normalize.Status(u.Status),
		XP:        u.XP,
		Tier:      u.Tier,
		CreatedAt: u.CreatedAt,
	}
}

type listResponse struct {
	Users      []userRow           `json:"users"`
	Pagination reqparam.Pagination `json:"pagination"`
}

// list returns users filtered by ?q (name prefix or email substring),
// ?status and ?role, ordered by name.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit := reqparam.Page(r)
	filter := bson.M{}

	if st := normalize.Status(query.Get(r, "status")); status.IsValid(st) {
		filter["status"] = st
	}
	if role := normalize.Role(query.Get(r, "role")); models.IsValidRole(role) {
		filter["role"] = role
	}
	if q := query.Get(r, "q"); q != "" {
		qFold := text.Fold(q)
		filter["$or"] = bson.A{
			bson.M{"name_ci": bson.M{"$gte": qFold, "$lt": qFold + "\uffff"}},
			bson.M{"email": bson.M{"$regex": regexp.QuoteMeta(normalize.Email(q))}},
		}
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	total, err := h.userStore.Count(ctx, filter)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(storeutil.Skip(limit, page)).
		SetLimit(limit).
		SetProjection(bson.M{"password_hash": 0, "recent_xp_keys": 0})
	users, err := h.userStore.Find(ctx, filter, opts)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, toRow(u))
	}
	jsonutil.OK(w, listResponse{Users: rows, Pagination: reqparam.NewPagination(page, limit, total)})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "id", "user")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	u, err := h.userStore.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("user", id.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, toRow(*u))
}

type updateInput struct {
	Status *string `json:"status"`
	Role   *string `json:"role"`
}

// update changes a user's status and/or role. Admins cannot change their own
// account, and the last active admin cannot be demoted or disabled.
// Disabling a user closes their tracked sessions.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	id, err := reqparam.ObjectID(r, "id", "user")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	var in updateInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if in.Status == nil && in.Role == nil {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("", "Nothing to update."))
		return
	}

	newStatus, newRole := "", ""
	if in.Status != nil {
		newStatus = normalize.Status(*in.Status)
		if !status.IsValid(newStatus) {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("status", "Status must be active or disabled."))
			return
		}
	}
	if in.Role != nil {
		newRole = normalize.Role(*in.Role)
		if !models.IsValidRole(newRole) {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("role", "Role must be user or admin."))
			return
		}
	}

	if actor.UserID() == id {
		jsonutil.WriteError(w, r, h.logger, apperror.Forbidden("You cannot change your own account."))
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
	oldStatus, oldRole := normalize.Status(user.Status), normalize.Role(user.Role)

	losesAdmin := oldRole == models.RoleAdmin && oldStatus == status.Active &&
		((newRole != "" && newRole != models.RoleAdmin) || (newStatus != "" && newStatus != status.Active))
	if losesAdmin {
		n, err := h.userStore.CountActiveAdmins(ctx)
		if err != nil {
			jsonutil.WriteError(w, r, h.logger, err)
			return
		}
		if n <= 1 {
			jsonutil.WriteError(w, r, h.logger, apperror.Conflict("At least one active admin must remain."))
			return
		}
	}

	if newStatus != "" && newStatus != oldStatus {
		if err := h.userStore.SetStatus(ctx, id, newStatus); err != nil {
			jsonutil.WriteError(w, r, h.logger, err)
			return
		}
		user.Status = newStatus
		h.auditLogger.UserStatusChanged(ctx, r, actor.ID, id, oldStatus, newStatus)

		if newStatus == status.Disabled {
			closed, err := h.sessionStore.CloseOthers(ctx, id, "")
			if err != nil {
				h.logger.Warn("failed to close sessions of disabled user", zap.String("user_id", id.Hex()), zap.Error(err))
			} else if closed > 0 {
				h.auditLogger.SessionsRevoked(ctx, r, id, closed)
			}
		}
	}
	if newRole != "" && newRole != oldRole {
		if err := h.userStore.SetRole(ctx, id, newRole); err != nil {
			jsonutil.WriteError(w, r, h.logger, err)
			return
		}
		user.Role = newRole
		h.auditLogger.UserRoleChanged(ctx, r, actor.ID, id, oldRole, newRole)
	}

	jsonutil.OK(w, toRow(*user))
}
