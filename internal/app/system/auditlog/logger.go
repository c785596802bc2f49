// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/devcanvas/devcanvas/internal/app/store/audit"
	"github.com/devcanvas/devcanvas/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"
	DestLog = "log"
	DestOff = "off"
)

// Config selects where each category is written.
type Config struct {
	Auth    string
	Content string
	Admin   string
}

// Logger records audit events to MongoDB and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so handlers under test can omit it.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var dest string
	switch event.Category {
	case audit.CategoryAuth:
		dest = l.config.Auth
	case audit.CategoryContent:
		dest = l.config.Content
	case audit.CategoryAdmin:
		dest = l.config.Admin
	}
	if dest == "" {
		dest = DestAll
	}
	if dest == DestOff {
		return
	}

	if dest == DestAll || dest == DestLog {
		l.logToZap(event)
	}
	if (dest == DestAll || dest == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func oidPtr(hex string) *primitive.ObjectID {
	if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
		return &oid
	}
	return nil
}

func (l *Logger) auth(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, ok bool, reason string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            network.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       ok,
		FailureReason: reason,
		Details:       details,
	})
}

// --- Authentication Events ---

// Registered logs a new account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventRegistered, &userID, true, "", map[string]string{"email": email})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventLoginSuccess, &userID, true, "", map[string]string{"email": email})
}

// LoginFailedUserNotFound logs a login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, email string) {
	l.auth(ctx, r, audit.EventLoginFailedUserNotFound, nil, false, "user not found", map[string]string{"attempted_email": email})
}

// LoginFailedWrongPassword logs a bad password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventLoginFailedWrongPassword, &userID, false, "wrong password", map[string]string{"email": email})
}

// LoginFailedUserDisabled logs a login to a disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.EventLoginFailedUserDisabled, &userID, false, "user disabled", map[string]string{"email": email})
}

// LoginLockedOut logs a rejected attempt during lockout.
func (l *Logger) LoginLockedOut(ctx context.Context, r *http.Request, email string) {
	l.auth(ctx, r, audit.EventLoginLockedOut, nil, false, "locked out", map[string]string{"email": email})
}

// Logout logs a user logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDHex string) {
	l.auth(ctx, r, audit.EventLogout, oidPtr(userIDHex), true, "", nil)
}

// SessionsRevoked logs a user closing their other sessions.
func (l *Logger) SessionsRevoked(ctx context.Context, r *http.Request, userID primitive.ObjectID, closed int64) {
	l.auth(ctx, r, audit.EventSessionsRevoked, &userID, true, "", map[string]string{
		"closed": strconv.FormatInt(closed, 10),
	})
}

// --- Content Events ---

// ProjectDeleted logs a delete request. owner is false when the actor did
// not author the project; existed is false when nothing was removed.
func (l *Logger) ProjectDeleted(ctx context.Context, r *http.Request, actorHex string, projectID primitive.ObjectID, author *primitive.ObjectID, owner, existed bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryContent,
		EventType: audit.EventProjectDeleted,
		UserID:    author,
		ActorID:   oidPtr(actorHex),
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"project_id": projectID.Hex(),
			"owner":      strconv.FormatBool(owner),
			"existed":    strconv.FormatBool(existed),
		},
	})
}

// VisibilityChanged logs a visibility update on a project.
func (l *Logger) VisibilityChanged(ctx context.Context, r *http.Request, actorHex string, projectID, author primitive.ObjectID, from, to string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryContent,
		EventType: audit.EventVisibilityChanged,
		UserID:    &author,
		ActorID:   oidPtr(actorHex),
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"project_id": projectID.Hex(),
			"from":       from,
			"to":         to,
			"owner":      strconv.FormatBool(author.Hex() == actorHex),
		},
	})
}

// CommentDeleted logs a comment removal.
func (l *Logger) CommentDeleted(ctx context.Context, r *http.Request, actorHex string, commentID primitive.ObjectID, removed int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryContent,
		EventType: audit.EventCommentDeleted,
		ActorID:   oidPtr(actorHex),
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"comment_id": commentID.Hex(),
			"removed":    strconv.FormatInt(removed, 10),
		},
	})
}

// --- Admin Events ---

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType, actorHex string, target primitive.ObjectID, from, to string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    &target,
		ActorID:   oidPtr(actorHex),
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"from": from, "to": to},
	})
}

// UserStatusChanged logs an admin enabling or disabling an account.
func (l *Logger) UserStatusChanged(ctx context.Context, r *http.Request, actorHex string, target primitive.ObjectID, from, to string) {
	l.admin(ctx, r, audit.EventUserStatusChanged, actorHex, target, from, to)
}

// UserRoleChanged logs an admin changing a user's role.
func (l *Logger) UserRoleChanged(ctx context.Context, r *http.Request, actorHex string, target primitive.ObjectID, from, to string) {
	l.admin(ctx, r, audit.EventUserRoleChanged, actorHex, target, from, to)
}
