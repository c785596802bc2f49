// internal/domain/models/user.go
package models

import (
	"time"

	"github.com/devcanvas/devcanvas/internal/domain/xp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered developer.
//
// XP and Tier are engagement bookkeeping:
//   - XP only grows, and only through users.Store.ApplyXP
//   - Tier is always xp.TierFor(XP); it is written in the same update as XP
//   - RecentXPKeys remembers the last applied XP event keys so replays are no-ops
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"` // folded for search and sort

	Email        string `bson:"email" json:"email"` // lowercase, unique
	PasswordHash string `bson:"password_hash" json:"-"`

	Role   string `bson:"role" json:"role"`
	Status string `bson:"status" json:"status"`

	Bio       string   `bson:"bio,omitempty" json:"bio,omitempty"`
	Location  string   `bson:"location,omitempty" json:"location,omitempty"`
	Website   string   `bson:"website,omitempty" json:"website,omitempty"`
	GitHub    string   `bson:"github,omitempty" json:"github,omitempty"`
	AvatarURL string   `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Skills    []string `bson:"skills,omitempty" json:"skills,omitempty"`

	Preferences Preferences `bson:"preferences" json:"preferences"`

	// Declared for the social graph; no handler mutates these yet.
	Followers []primitive.ObjectID `bson:"followers,omitempty" json:"followers,omitempty"`
	Following []primitive.ObjectID `bson:"following,omitempty" json:"following,omitempty"`

	XP           int64    `bson:"xp" json:"xp"`
	Tier         xp.Tier  `bson:"tier" json:"tier"`
	RecentXPKeys []string `bson:"recent_xp_keys,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Preferences are user-controlled display and privacy settings.
type Preferences struct {
	Theme              string `bson:"theme" json:"theme"` // light, dark, system
	Language           string `bson:"language" json:"language"`
	EmailNotifications bool   `bson:"email_notifications" json:"emailNotifications"`
	PublicProfile      bool   `bson:"public_profile" json:"publicProfile"`
}

// DefaultPreferences are applied at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:              ThemeSystem,
		Language:           "en",
		EmailNotifications: true,
		PublicProfile:      true,
	}
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Themes
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{RoleUser, RoleAdmin}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// PublicUser is the subset of a user shown to other people.
type PublicUser struct {
	ID        primitive.ObjectID `json:"id"`
	Name      string             `json:"name"`
	Bio       string             `json:"bio,omitempty"`
	Location  string             `json:"location,omitempty"`
	Website   string             `json:"website,omitempty"`
	GitHub    string             `json:"github,omitempty"`
	AvatarURL string             `json:"avatarUrl,omitempty"`
	Skills    []string           `json:"skills,omitempty"`
	XP        int64              `json:"xp"`
	Tier      xp.Tier            `json:"tier"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Public returns the public view of u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Bio:       u.Bio,
		Location:  u.Location,
		Website:   u.Website,
		GitHub:    u.GitHub,
		AvatarURL: u.AvatarURL,
		Skills:    u.Skills,
		XP:        u.XP,
		Tier:      u.Tier,
		CreatedAt: u.CreatedAt,
	}
}
