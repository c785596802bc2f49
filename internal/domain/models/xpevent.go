// internal/domain/models/xpevent.go
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// XPEvent records one XP award. Key is unique so an award happens once no
// matter how many times the triggering action is retried or replayed.
type XPEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Key       string             `bson:"key" json:"key"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Action    string             `bson:"action" json:"action"`
	Amount    int64              `bson:"amount" json:"amount"`
	Applied   bool               `bson:"applied" json:"applied"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	AppliedAt *time.Time         `bson:"applied_at,omitempty" json:"appliedAt,omitempty"`
}

// XP actions
const (
	XPActionComment      = "comment"
	XPActionPublish      = "publish"
	XPActionLikeReceived = "like_received"
)

// CommentXPKey is the event key for commenting.
func CommentXPKey(commentID primitive.ObjectID) string {
	return fmt.Sprintf("comment:%s", commentID.Hex())
}

// PublishXPKey is the event key for publishing a project.
func PublishXPKey(projectID primitive.ObjectID) string {
	return fmt.Sprintf("publish:%s", projectID.Hex())
}

// LikeXPKey is the event key for a like received. One per (project, liker).
func LikeXPKey(projectID, likerID primitive.ObjectID) string {
	return fmt.Sprintf("like:%s:%s", projectID.Hex(), likerID.Hex())
}
