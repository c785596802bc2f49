// internal/domain/models/conversation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message limits
const (
	MessageMaxLength = 2000
)

// Conversation is a private chat between two or more users.
// Participants are stored sorted so the same set always has the same key.
type Conversation struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants   []primitive.ObjectID `bson:"participants" json:"participants"`
	ParticipantKey string               `bson:"participant_key" json:"-"`
	LastMessageAt  *time.Time           `bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt      time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID primitive.ObjectID) bool {
	return containsID(c.Participants, userID)
}

// Message is one chat message.
type Message struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Conversation primitive.ObjectID `bson:"conversation" json:"conversation"`
	Sender       primitive.ObjectID `bson:"sender" json:"sender"`
	Body         string             `bson:"body" json:"body"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}
