// internal/domain/models/community.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Community is a topic group developers can join.
type Community struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Slug        string               `bson:"slug" json:"slug"`
	Name        string               `bson:"name" json:"name"`
	NameCI      string               `bson:"name_ci" json:"-"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Tags        []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	Owner       *primitive.ObjectID  `bson:"owner,omitempty" json:"owner,omitempty"`
	Members     []primitive.ObjectID `bson:"members" json:"-"`
	CreatedAt   time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updated_at" json:"updatedAt"`
}

// CommunityView adds the computed member count and caller membership.
type CommunityView struct {
	Community
	MemberCount int  `json:"memberCount"`
	Joined      bool `json:"joined"`
}

// View builds the API view of c for viewer (zero for anonymous).
func (c Community) View(viewer primitive.ObjectID) CommunityView {
	return CommunityView{
		Community:   c,
		MemberCount: len(c.Members),
		Joined:      !viewer.IsZero() && containsID(c.Members, viewer),
	}
}
