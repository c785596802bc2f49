// Package engagement owns the writes that award XP: comments, project
// publishing and likes received. Every award goes through the XP event log
// so it is applied exactly once, even across crashes and replays.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	commentstore "github.com/devcanvas/devcanvas/internal/app/store/comments"
	projectstore "github.com/devcanvas/devcanvas/internal/app/store/projects"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	xpeventstore "github.com/devcanvas/devcanvas/internal/app/store/xpevents"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/metrics"
	"github.com/devcanvas/devcanvas/internal/app/system/txn"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Replay settings. Events younger than replayGrace may still be in flight.
const (
	replayGrace = 30 * time.Second
	replayBatch = 100
)

// XP write paths reported to metrics besides the txn paths.
const (
	pathDirect = "direct"
	pathReplay = "replay"
)

// errUnrecorded marks an award whose event never reached the log, so the
// replay job has nothing to finish.
var errUnrecorded = errors.New("xp event not recorded")

// Service coordinates the stores involved in an XP-awarding write.
type Service struct {
	db       *mongo.Database
	users    *userstore.Store
	projects *projectstore.Store
	comments *commentstore.Store
	events   *xpeventstore.Store
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New wires a Service over db. m may be nil.
func New(db *mongo.Database, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		db:       db,
		users:    userstore.New(db),
		projects: projectstore.New(db),
		comments: commentstore.New(db),
		events:   xpeventstore.New(db),
		metrics:  m,
		log:      log,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Comments                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// CommentInput is a new comment request.
type CommentInput struct {
	ProjectID primitive.ObjectID
	AuthorID  primitive.ObjectID
	Content   string
	ParentID  *primitive.ObjectID
}

// CreateComment validates and stores a comment, then awards the author
// xp.AwardComment. Errors are *apperror.AppError for caller mistakes.
func (s *Service) CreateComment(ctx context.Context, in CommentInput) (*models.Comment, error) {
	if in.AuthorID.IsZero() {
		return nil, apperror.Unauthorized("")
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "Comment content is required.")
	}
	if utf8.RuneCountInString(content) > models.CommentMaxLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("Comment must be at most %d characters.", models.CommentMaxLength))
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			return nil, apperror.NotFound("project", in.ProjectID.Hex())
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.VisibleTo(in.AuthorID) {
		return nil, apperror.NotFound("project", in.ProjectID.Hex())
	}

	if in.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, commentstore.ErrNotFound) {
				return nil, apperror.ValidationFailed("parentComment", "Parent comment does not exist.")
			}
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
		if parent.Project != project.ID {
			return nil, apperror.ValidationFailed("parentComment", "Parent comment belongs to a different project.")
		}
	}

	comment := models.Comment{
		ID:            primitive.NewObjectID(),
		Project:       project.ID,
		Author:        in.AuthorID,
		Content:       content,
		ParentComment: in.ParentID,
	}
	event := models.XPEvent{
		Key:    models.CommentXPKey(comment.ID),
		UserID: in.AuthorID,
		Action: models.XPActionComment,
		Amount: xp.AwardComment,
	}

	var (
		created models.Comment
		applied bool
	)
	path, err := txn.RunWithFallback(ctx, s.db, s.log,
		func(sc context.Context) error {
			var err error
			if created, err = s.comments.Create(sc, comment); err != nil {
				return err
			}
			applied, err = s.award(sc, event)
			return err
		},
		func(ctx context.Context) error {
			var err error
			if created, err = s.comments.Create(ctx, comment); err != nil {
				return err
			}
			// The comment stands even if the award fails. A recorded event
			// stays pending and the replay job applies it.
			if applied, err = s.award(ctx, event); err != nil {
				s.awardFailed(event, err)
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.metrics.CommentCreated()
	if applied {
		s.metrics.XPAwarded(event.Action, string(path), event.Amount)
	}
	return &created, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Projects                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// PublishProject stores p and awards its author xp.AwardPublish.
func (s *Service) PublishProject(ctx context.Context, p models.Project) (*models.Project, error) {
	if p.Author.IsZero() {
		return nil, apperror.Unauthorized("")
	}

	var (
		created models.Project
		event   models.XPEvent
		applied bool
	)
	build := func(ctx context.Context) error {
		var err error
		if created, err = s.projects.Create(ctx, p); err != nil {
			return err
		}
		event = models.XPEvent{
			Key:    models.PublishXPKey(created.ID),
			UserID: created.Author,
			Action: models.XPActionPublish,
			Amount: xp.AwardPublish,
		}
		return nil
	}

	path, err := txn.RunWithFallback(ctx, s.db, s.log,
		func(sc context.Context) error {
			if err := build(sc); err != nil {
				return err
			}
			var err error
			applied, err = s.award(sc, event)
			return err
		},
		func(ctx context.Context) error {
			if err := build(ctx); err != nil {
				return err
			}
			var err error
			if applied, err = s.award(ctx, event); err != nil {
				s.awardFailed(event, err)
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("publish project: %w", err)
	}
	if applied {
		s.metrics.XPAwarded(event.Action, string(path), event.Amount)
	}
	return &created, nil
}

// ToggleResult is returned by the like and bookmark toggles.
type ToggleResult struct {
	Member bool
	Count  int
}

// ToggleLike flips userID's like on a project. The first like from a given
// user awards the author xp.AwardLikeReceived; self-likes, unlikes and
// re-likes award nothing.
func (s *Service) ToggleLike(ctx context.Context, projectID, userID primitive.ObjectID) (ToggleResult, error) {
	if userID.IsZero() {
		return ToggleResult{}, apperror.Unauthorized("")
	}
	res, project, err := s.projects.ToggleLike(ctx, projectID, userID)
	if err != nil {
		return ToggleResult{}, toggleErr(err, projectID)
	}
	s.metrics.Toggle("like", res.Member)

	if res.Member && project.Author != userID {
		event := models.XPEvent{
			Key:    models.LikeXPKey(projectID, userID),
			UserID: project.Author,
			Action: models.XPActionLikeReceived,
			Amount: xp.AwardLikeReceived,
		}
		applied, err := s.award(ctx, event)
		switch {
		case err != nil:
			s.awardFailed(event, err)
		case applied:
			s.metrics.XPAwarded(event.Action, pathDirect, event.Amount)
		}
	}
	return ToggleResult{Member: res.Member, Count: res.Count}, nil
}

// ToggleBookmark flips userID's bookmark on a project.
func (s *Service) ToggleBookmark(ctx context.Context, projectID, userID primitive.ObjectID) (ToggleResult, error) {
	if userID.IsZero() {
		return ToggleResult{}, apperror.Unauthorized("")
	}
	res, _, err := s.projects.ToggleBookmark(ctx, projectID, userID)
	if err != nil {
		return ToggleResult{}, toggleErr(err, projectID)
	}
	s.metrics.Toggle("bookmark", res.Member)
	return ToggleResult{Member: res.Member, Count: res.Count}, nil
}

func toggleErr(err error, projectID primitive.ObjectID) error {
	if errors.Is(err, projectstore.ErrNotFound) {
		return apperror.NotFound("project", projectID.Hex())
	}
	return fmt.Errorf("toggle: %w", err)
}

/*─────────────────────────────────────────────────────────────────────────────*
| XP event log                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// award records e and applies it. A key seen before is only applied if its
// earlier attempt never finished. Inside a transaction the key must be new:
// a duplicate insert aborts the transaction.
func (s *Service) award(ctx context.Context, e models.XPEvent) (bool, error) {
	created, err := s.events.Record(ctx, e)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errUnrecorded, err)
	}
	if !created {
		existing, err := s.events.GetByKey(ctx, e.Key)
		if err != nil {
			return false, fmt.Errorf("load xp event: %w", err)
		}
		if existing.Applied {
			return false, nil
		}
	}
	return s.apply(ctx, e)
}

// awardFailed logs an award that did not complete outside a transaction.
func (s *Service) awardFailed(e models.XPEvent, err error) {
	if errors.Is(err, errUnrecorded) {
		s.log.Error("xp award dropped",
			zap.String("action", e.Action), zap.String("key", e.Key), zap.Error(err))
		return
	}
	s.log.Warn("xp award deferred to replay",
		zap.String("action", e.Action), zap.String("key", e.Key), zap.Error(err))
}

// apply adds the event to the user and marks it applied. A missing user
// closes the event without effect.
func (s *Service) apply(ctx context.Context, e models.XPEvent) (bool, error) {
	applied, err := s.users.ApplyXP(ctx, e.UserID, e.Amount, e.Key)
	if err != nil && !errors.Is(err, userstore.ErrNotFound) {
		return false, fmt.Errorf("apply xp: %w", err)
	}
	if errors.Is(err, userstore.ErrNotFound) {
		s.log.Info("xp event for missing user closed", zap.String("key", e.Key))
	}
	if err := s.events.MarkApplied(ctx, e.Key); err != nil {
		return applied, fmt.Errorf("mark xp event applied: %w", err)
	}
	return applied, nil
}

// ReplayPending applies events that were recorded but never marked applied.
// It satisfies tasks.XPReplayer.
func (s *Service) ReplayPending(ctx context.Context) (int, error) {
	pending, err := s.events.ListPending(ctx, replayGrace, replayBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending xp events: %w", err)
	}

	n := 0
	for _, e := range pending {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		applied, err := s.apply(ctx, e)
		if err != nil {
			s.log.Warn("xp replay failed", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		if applied {
			n++
			s.metrics.XPAwarded(e.Action, pathReplay, e.Amount)
		}
	}
	return n, nil
}
