// internal/app/features/comments/comments.go
package comments

import (
	"errors"
	"net/http"

	commentstore "github.com/devcanvas/devcanvas/internal/app/store/comments"
	projectstore "github.com/devcanvas/devcanvas/internal/app/store/projects"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/auditlog"
	"github.com/devcanvas/devcanvas/internal/app/system/auth"
	"github.com/devcanvas/devcanvas/internal/app/system/authz"
	"github.com/devcanvas/devcanvas/internal/app/system/engagement"
	"github.com/devcanvas/devcanvas/internal/app/system/jsonutil"
	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/app/system/timeouts"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	comments    *commentstore.Store
	projects    *projectstore.Store
	engagement  *engagement.Service
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, eng *engagement.Service, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		comments:    commentstore.New(db),
		projects:    projectstore.New(db),
		engagement:  eng,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// ThreadRoutes serves a project's comments. Mount it at
// /projects/{id}/comments; the project id is read from the parent route.
func ThreadRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.With(auth.RequireSignedIn).Post("/", h.create)
	return r
}

// Routes serves single comments, mounted at /comments.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Delete("/{commentID}", h.delete)
	return r
}

type listResponse struct {
	Comments   []models.CommentThread `json:"comments"`
	Pagination reqparam.Pagination    `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := reqparam.ObjectID(r, "id", "project")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	page, limit := reqparam.Page(r)

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	p, err := h.projects.GetByID(ctx, projectID)
	if errors.Is(err, projectstore.ErrNotFound) || (err == nil && !p.VisibleTo(auth.ViewerID(r))) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("project", projectID.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	threads, total, err := h.comments.ListThreads(ctx, projectID, page, limit)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.OK(w, listResponse{
		Comments:   threads,
		Pagination: reqparam.NewPagination(page, limit, total),
	})
}

type createInput struct {
	Content       string `json:"content"`
	ParentComment string `json:"parentComment"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	projectID, err := reqparam.ObjectID(r, "id", "project")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	var in createInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	var parent *primitive.ObjectID
	if in.ParentComment != "" {
		id, err := primitive.ObjectIDFromHex(in.ParentComment)
		if err != nil {
			jsonutil.WriteError(w, r, h.logger, apperror.ValidationFailed("parentComment", "Parent comment does not exist."))
			return
		}
		parent = &id
	}

	ctx, cancel := timeouts.MediumCtx(r.Context())
	defer cancel()

	c, err := h.engagement.CreateComment(ctx, engagement.CommentInput{
		ProjectID: projectID,
		AuthorID:  auth.ViewerID(r),
		Content:   in.Content,
		ParentID:  parent,
	})
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	jsonutil.Created(w, c)
}

// delete removes a comment and its replies. Only the author or an admin may
// do this. XP earned by the comment is kept.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := reqparam.ObjectID(r, "commentID", "comment")
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}

	ctx, cancel := timeouts.ShortCtx(r.Context())
	defer cancel()

	c, err := h.comments.GetByID(ctx, id)
	if errors.Is(err, commentstore.ErrNotFound) {
		jsonutil.WriteError(w, r, h.logger, apperror.NotFound("comment", id.Hex()))
		return
	}
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	if !authz.CanModify(r, c.Author) {
		jsonutil.WriteError(w, r, h.logger, apperror.Forbidden("Only the author can delete this comment."))
		return
	}

	removed, err := h.comments.DeleteWithReplies(ctx, id)
	if err != nil {
		jsonutil.WriteError(w, r, h.logger, err)
		return
	}
	principal, _ := auth.CurrentUser(r)
	h.auditLogger.CommentDeleted(ctx, r, principal.ID, id, removed)
	jsonutil.OK(w, map[string]any{"success": true, "removed": removed})
}
