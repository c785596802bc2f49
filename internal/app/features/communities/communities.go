// internal/app/features/communities/communities.go
package communities

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	communitystore "github.com/devcanvas/devcanvas/internal/app/store/communities"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/inputval"
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

type Handler struct {
	communities *communitystore.Store
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{communities: communitystore.New(db), logger: logger}
}

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{slug}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Post("/", h.create)
		r.Post("/{slug}/join", h.join)
	})
	return r
}

type listResponse struct {
	Communities []models.CommunityView `json:"communities"`
	Pagination  reqparam.Pagination    `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit := reqparam.Page(r)

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	items, total, err := h.communities.List(ctx, query.Get(r, "q"), page, limit)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	viewer := auth.ViewerID(r)
	views := make([]models.CommunityView, len(items))
	for i, c := range items {
		views[i] = c.View(viewer)
	}
	jsonutil.OK(w, listResponse{Communities: views, Pagination: reqparam.NewPagination(page, limit, total)})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	slug := normalize.Slug(chi.URLParam(r, "slug"))

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	c, err := h.communities.GetBySlug(ctx, slug)
	if errors.Is(err, communitystore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("community", slug))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, c.View(auth.ViewerID(r)))
}

type createInput struct {
	Name        string   `json:"name" validate:"required,max=60" label:"Name"`
	Description string   `json:"description" validate:"max=500" label:"Description"`
	Tags        []string `json:"tags"`
}

// create stores a community owned by the caller, who becomes its first member.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	in.Name = normalize.Name(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.WriteError(w, r, h.logger, res.Err())
		return
	}
	if communitystore.Slugify(in.Name) == "" {
		jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("name", "Name must contain letters or digits."))
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	owner := auth.ViewerID(r)
	c, err := h.communities.Create(ctx, models.Community{
		Name:        in.Name,
		Description: in.Description,
		Tags:        normalize.Tags(in.Tags),
		Owner:       &owner,
		Members:     []primitive.ObjectID{owner},
	})
	if errors.Is(err, communitystore.ErrDuplicateSlug) {
		jsonutil.WriteError(w, r, h.logger, apperror.Conflict(err.Error()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.Created(w, c.View(owner))
}

type joinResponse struct {
	Joined      bool `json:"joined"`
	MemberCount int  `json:"memberCount"`
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	slug := normalize.Slug(chi.URLParam(r, "slug"))

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	joined, count, err := h.communities.ToggleMembership(ctx, slug, auth.ViewerID(r))
	if errors.Is(err, communitystore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("community", slug))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, joinResponse{Joined: joined, MemberCount: count})
}
