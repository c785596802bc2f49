// internal/domain/models/comment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment limits
const (
	CommentMaxLength = 1000
)

// Comment is a remark on a project, optionally replying to another comment
// on the same project.
type Comment struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Project       primitive.ObjectID  `bson:"project" json:"project"`
	Author        primitive.ObjectID  `bson:"author" json:"author"`
	Content       string              `bson:"content" json:"content"`
	ParentComment *primitive.ObjectID `bson:"parent_comment,omitempty" json:"parentComment,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updatedAt"`
}

// CommentThread is a top-level comment with its direct replies.
type CommentThread struct {
	Comment
	Replies []Comment `json:"replies"`
}
