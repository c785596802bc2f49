// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project is a published code snippet.
//
// Likes and Bookmarks are sets of user ids. Their sizes are always computed
// from the arrays; no counter is stored.
type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Author      primitive.ObjectID   `bson:"author" json:"author"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	CodeSnippet string               `bson:"code_snippet" json:"codeSnippet"`
	Language    string               `bson:"language" json:"language"`
	Tags        []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	Visibility  string               `bson:"visibility" json:"visibility"`
	Likes       []primitive.ObjectID `bson:"likes" json:"-"`
	Bookmarks   []primitive.ObjectID `bson:"bookmarks" json:"-"`
	Views       int64                `bson:"views" json:"views"`
	CreatedAt   time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updated_at" json:"updatedAt"`
}

// Visibility values
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// IsValidVisibility reports whether v is public or private.
func IsValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// LikeCount returns the number of distinct likers.
func (p Project) LikeCount() int { return len(p.Likes) }

// BookmarkCount returns the number of distinct bookmarkers.
func (p Project) BookmarkCount() int { return len(p.Bookmarks) }

// HasLike reports whether userID is in the like set.
func (p Project) HasLike(userID primitive.ObjectID) bool {
	return containsID(p.Likes, userID)
}

// HasBookmark reports whether userID is in the bookmark set.
func (p Project) HasBookmark(userID primitive.ObjectID) bool {
	return containsID(p.Bookmarks, userID)
}

// VisibleTo reports whether the project can be read by userID.
// A zero userID is an anonymous caller.
func (p Project) VisibleTo(userID primitive.ObjectID) bool {
	return p.Visibility != VisibilityPrivate || (!userID.IsZero() && p.Author == userID)
}

// ProjectView is the JSON shape returned by the API.
type ProjectView struct {
	Project
	LikeCount     int   `json:"likes"`
	BookmarkCount int   `json:"bookmarkCount"`
	CommentCount  int64 `json:"commentCount"`
	Liked         bool  `json:"liked"`
	Bookmarked    bool  `json:"bookmarked"`
}

// View builds the API view of p for viewer (zero for anonymous).
func (p Project) View(viewer primitive.ObjectID, comments int64) ProjectView {
	v := ProjectView{
		Project:       p,
		LikeCount:     p.LikeCount(),
		BookmarkCount: p.BookmarkCount(),
		CommentCount:  comments,
	}
	if !viewer.IsZero() {
		v.Liked = p.HasLike(viewer)
		v.Bookmarked = p.HasBookmark(viewer)
	}
	return v
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
