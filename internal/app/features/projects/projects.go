// internal/app/features/projects/projects.go
package projects

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	commentstore "github.com/devcanvas/devcanvas/internal/app/store/comments"
	projectstore "github.com/devcanvas/devcanvas/internal/app/store/projects"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/authz"
	"github.com/devcanvas/devcanvas/internal/app/system/engagement"
	"github.com/devcanvas/devcanvas/internal/app/system/htmlsanitize"
	"github.com/devcanvas/devcanvas/internal/app/system/inputval"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/metrics"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Tag limits.
const (
	maxTags      = 10
	maxTagLength = 30
)

// DegradedHeader marks responses served from built-in sample data.
const DegradedHeader = "X-DevCanvas-Degraded"

// Options toggles behaviour that is decided by configuration.
type Options struct {
	// EnforceOwnership restricts update and delete to the author or an admin.
	// When false, delete answers success for any signed-in caller and the
	// audit log flags non-owner requests.
	EnforceOwnership bool
	// DemoFallback serves sample projects when listing fails.
	DemoFallback bool
}

// Handler serves the project endpoints.
type Handler struct {
	projects    *projectstore.Store
	comments    *commentstore.Store
	engagement  *engagement.Service
	auditLogger *auditlog.Logger
	metrics     *metrics.Metrics
	opts        Options
	logger      *zap.Logger
}

// NewHandler creates a projects Handler.
func NewHandler(db *mongo.Database, eng *engagement.Service, auditLogger *auditlog.Logger, m *metrics.Metrics, opts Options, logger *zap.Logger) *Handler {
	return &Handler{
		projects:    projectstore.New(db),
		comments:    commentstore.New(db),
		engagement:  eng,
		auditLogger: auditLogger,
		metrics:     m,
		opts:        opts,
		logger:      logger,
	}
}

// Routes returns a chi.Router with the project routes, mounted at /projects.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.show)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/like", h.like)
		r.Post("/{id}/bookmark", h.bookmark)
	})
	return r
}

/*─────────────────────────────────────────────────────────────────────────────*
| Input                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type createInput struct {
	Title       string   `json:"title" validate:"required,max=120" label:"Title"`
	Description string   `json:"description" validate:"max=2000" label:"Description"`
	CodeSnippet string   `json:"codeSnippet" validate:"required,max=50000" label:"Code snippet"`
	Language    string   `json:"language" validate:"required,max=30" label:"Language"`
	Tags        []string `json:"tags"`
	Visibility  string   `json:"visibility" validate:"visibility" label:"Visibility"`
}

type updateInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	CodeSnippet *string   `json:"codeSnippet"`
	Language    *string   `json:"language"`
	Tags        *[]string `json:"tags"`
	Visibility  *string   `json:"visibility"`
}

// checkTags normalizes tags and enforces the count and length limits.
func checkTags(tags []string) ([]string, error) {
	out := normalize.Tags(tags)
	if len(out) > maxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("At most %d tags are allowed.", maxTags))
	}
	for _, t := range out {
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, apperror.ValidationFailed("tags", fmt.Sprintf("Each tag must be at most %d characters.", maxTagLength))
		}
	}
	return out, nil
}

func (in *createInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Language = normalize.Language(in.Language)
	if strings.TrimSpace(in.CodeSnippet) == "" {
		in.CodeSnippet = ""
	}
	in.Visibility = normalize.Visibility(in.Visibility)
	if res := inputval.Validate(*in); res.HasErrors() {
		return res.Err()
	}
	tags, err := checkTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags
	in.Description = htmlsanitize.Sanitize(in.Description)
	return nil
}

// toUpdate validates the present fields with the same rules as create.
func (in updateInput) toUpdate() (projectstore.ProjectUpdate, error) {
	full := createInput{Title: "x", CodeSnippet: "x", Language: "x"}
	var u projectstore.ProjectUpdate
	if in.Title != nil {
		full.Title = *in.Title
	}
	if in.Description != nil {
		full.Description = *in.Description
	}
	if in.CodeSnippet != nil {
		full.CodeSnippet = *in.CodeSnippet
	}
	if in.Language != nil {
		full.Language = *in.Language
	}
	if in.Tags != nil {
		full.Tags = *in.Tags
	}
	if in.Visibility != nil {
		full.Visibility = *in.Visibility
		if strings.TrimSpace(full.Visibility) == "" {
			return u, apperror.ValidationFailed("visibility", "Visibility must be public or private.")
		}
	}
	if err := full.normalize(); err != nil {
		return u, err
	}

	if in.Title != nil {
		u.Title = &full.Title
	}
	if in.Description != nil {
		u.Description = &full.Description
	}
	if in.CodeSnippet != nil {
		u.CodeSnippet = &full.CodeSnippet
	}
	if in.Language != nil {
		u.Language = &full.Language
	}
	if in.Tags != nil {
		u.Tags = &full.Tags
	}
	if in.Visibility != nil {
		u.Visibility = &full.Visibility
	}
	return u, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Reads                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type listResponse struct {
	Projects   []models.ProjectView `json:"projects"`
	Pagination reqparam.Pagination  `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit := reqparam.Page(r)
	sort := projectstore.SortRecent
	if strings.EqualFold(query.Get(r, "sort"), projectstore.SortPopular) {
		sort = projectstore.SortPopular
	}
	f := projectstore.ListFilter{
		Query:    query.Get(r, "q"),
		Language: query.Get(r, "language"),
		Tag:      query.Get(r, "tag"),
		Viewer:   auth.ViewerID(r),
		Sort:     sort,
		Page:     page,
		Limit:    limit,
	}

	resp, err := h.listPage(r, f)
	if err != nil {
		if h.opts.DemoFallback {
			h.logger.Warn("serving demo projects", zap.Error(err))
			h.metrics.Degraded()
			w.Header().Set(DegradedHeader, "demo")
			jsonutil.OK(w, demoPage(page, limit))
			return
		}
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, resp)
}

// ListMine serves GET /user/projects: the caller's projects, private ones
// included.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ViewerID(r)
	h.listFor(w, r, projectstore.ListFilter{Author: &viewer, Viewer: viewer})
}

// ListBookmarks serves GET /user/bookmarks.
func (h *Handler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ViewerID(r)
	h.listFor(w, r, projectstore.ListFilter{BookmarkedBy: &viewer, Viewer: viewer})
}

func (h *Handler) listFor(w http.ResponseWriter, r *http.Request, f projectstore.ListFilter) {
	if f.Viewer.IsZero() {
		jsonutil.WriteError(w, r, h.logger, apperror.Unauthorized(""))
		return
	}
	f.Page, f.Limit = reqparam.Page(r)
	resp, err := h.listPage(r, f)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, resp)
}

func (h *Handler) listPage(r *http.Request, f projectstore.ListFilter) (listResponse, error) {
	ctx, cancel := timeouts.MediumCtx(r.Context())
	defer cancel()

	items, total, err := h.projects.List(ctx, f)
	if err != nil {
		return listResponse{}, fmt.Errorf("list projects: %w", err)
	}
	ids := make([]primitive.ObjectID, len(items))
	for i, p := range items {
		ids[i] = p.ID
	}
	counts, err := h.comments.CountByProjects(ctx, ids)
	if err != nil {
		return listResponse{}, fmt.Errorf("count comments: %w", err)
	}

	views := make([]models.ProjectView, len(items))
	for i, p := range items {
		views[i] = p.View(f.Viewer, counts[p.ID])
	}
	return listResponse{
		Projects:   views,
		Pagination: reqparam.NewPagination(f.Page, f.Limit, total),
	}, nil
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "id", "project")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	viewer := auth.ViewerID(r)
	p, err := h.projects.GetByID(ctx, id)
	if errors.Is(err, projectstore.ErrNotFound) || (err == nil && !p.VisibleTo(viewer)) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("project", id.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.projects.IncrementViews(ctx, id); err != nil {
		h.logger.Warn("failed to count project view", zap.String("project_id", id.Hex()), zap.Error(err))
	} else {
		p.Views++
	}
	n, err := h.comments.CountByProject(ctx, id)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, p.View(viewer, n))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Writes                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if err := in.normalize(); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.MediumCtx(r.Context())
	defer cancel()

	viewer := auth.ViewerID(r)
	p, err := h.engagement.PublishProject(ctx, models.Project{
		Author:      viewer,
		Title:       in.Title,
		Description: in.Description,
		CodeSnippet: in.CodeSnippet,
		Language:    in.Language,
		Tags:        in.Tags,
		Visibility:  in.Visibility,
	})
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.Created(w, p.View(viewer, 0))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "id", "project")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	var in updateInput
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

	viewer := auth.ViewerID(r)
	before, err := h.projects.GetByID(ctx, id)
	if errors.Is(err, projectstore.ErrNotFound) || (err == nil && !before.VisibleTo(viewer)) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("project", id.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if h.opts.EnforceOwnership && !authz.CanModify(r, before.Author) {
		jsonutil.WriteError(w, r, h.logger, apperror.Forbidden("Only the author can edit this project."))
		return
	}

	after, err := h.projects.Update(ctx, id, update)
	if errors.Is(err, projectstore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("project", id.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	if after.Visibility != before.Visibility {
		principal, _ := auth.CurrentUser(r)
		h.auditLogger.VisibilityChanged(ctx, r, principal.ID, id, before.Author, before.Visibility, after.Visibility)
	}

	n, err := h.comments.CountByProject(ctx, id)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, after.View(viewer, n))
}

// delete answers {success:true} whenever the request is allowed, including
// for unknown ids. With ownership enforcement on, only the author or an
// admin may remove an existing project.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.OK(w, map[string]bool{"success": true})
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	principal, _ := auth.CurrentUser(r)
	if h.opts.EnforceOwnership {
		p, err := h.projects.GetByID(ctx, id)
		switch {
		case errors.Is(err, projectstore.ErrNotFound):
			h.auditLogger.ProjectDeleted(ctx, r, principal.ID, id, nil, false, false)
			jsonutil.OK(w, map[string]bool{"success": true})
			return
		case err != nil:
			jsonutil.WriteError(w, r, h.logger, err)
			return
		case !authz.CanModify(r, p.Author):
			jsonutil.WriteError(w, r, h.logger, apperror.Forbidden("Only the author can delete this project."))
			return
		}
	}

	removed, err := h.projects.Delete(ctx, id)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	var author *primitive.ObjectID
	owner := false
	if removed != nil {
		author = &removed.Author
		owner = removed.Author == principal.UserID()
		// Comments left behind are also swept by the orphan cleanup job.
		if _, err := h.comments.DeleteByProject(ctx, id); err != nil {
			h.logger.Warn("failed to delete project comments", zap.String("project_id", id.Hex()), zap.Error(err))
		}
	}
	h.auditLogger.ProjectDeleted(ctx, r, principal.ID, id, author, owner, removed != nil)
	jsonutil.OK(w, map[string]bool{"success": true})
}

type likeResponse struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

type bookmarkResponse struct {
	Bookmarked    bool `json:"bookmarked"`
	BookmarkCount int  `json:"bookmarkCount"`
}

func (h *Handler) like(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "id", "project")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	res, err := h.engagement.ToggleLike(ctx, id, auth.ViewerID(r))
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, likeResponse{Likes: res.Count, Liked: res.Member})
}

func (h *Handler) bookmark(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "id", "project")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	res, err := h.engagement.ToggleBookmark(ctx, id, auth.ViewerID(r))
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, bookmarkResponse{Bookmarked: res.Member, BookmarkCount: res.Count})
}
