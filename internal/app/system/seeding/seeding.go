// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"
	"errors"
	"fmt"

	communitystore "github.com/devcanvas/devcanvas/internal/app/store/communities"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/authutil"
	"github.com/devcanvas/devcanvas/internal/app/system/normalize"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Admin describes the bootstrap administrator. An empty Email skips it.
type Admin struct {
	Email    string
	Name     string
	Password string
}

// DefaultCommunities are created on first start.
var DefaultCommunities = []models.Community{
	{Name: "Web Development", Description: "Frontend, backend and everything in between.", Tags: []string{"web", "javascript", "css"}},
	{Name: "Game Development", Description: "Engines, shaders and game jams.", Tags: []string{"games", "graphics"}},
	{Name: "Data Science", Description: "Notebooks, models and visualisations.", Tags: []string{"python", "ml", "data"}},
	{Name: "Systems Programming", Description: "Compilers, kernels and performance work.", Tags: []string{"go", "rust", "c"}},
	{Name: "Beginners", Description: "Ask anything. No question is too small.", Tags: []string{"help", "learning"}},
}

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, db *mongo.Database, logger *zap.Logger, admin Admin) error {
	if err := seedCommunities(ctx, db, logger); err != nil {
		return err
	}
	return seedAdmin(ctx, db, logger, admin)
}

// seedCommunities creates the default communities that don't exist yet.
func seedCommunities(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	store := communitystore.New(db)

	for _, c := range DefaultCommunities {
		slug := communitystore.Slugify(c.Name)
		exists, err := store.Exists(ctx, slug)
		if err != nil {
			logger.Error("failed to check if community exists",
				zap.String("slug", slug),
				zap.Error(err))
			return err
		}
		if exists {
			continue
		}
		if _, err := store.Create(ctx, c); err != nil {
			// Another instance may have won the race.
			if errors.Is(err, communitystore.ErrDuplicateSlug) {
				continue
			}
			logger.Error("failed to seed community",
				zap.String("slug", slug),
				zap.Error(err))
			return err
		}
		logger.Info("seeded default community", zap.String("slug", slug))
	}
	return nil
}

// seedAdmin creates the bootstrap admin when no user holds that email.
// An existing user is left untouched, even if it is not an admin.
func seedAdmin(ctx context.Context, db *mongo.Database, logger *zap.Logger, admin Admin) error {
	email := normalize.Email(admin.Email)
	if email == "" {
		return nil
	}
	users := userstore.New(db)

	exists, err := users.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check seed admin: %w", err)
	}
	if exists {
		return nil
	}

	name := normalize.Name(admin.Name)
	if name == "" {
		name = "Administrator"
	}
	reg, err := authutil.ValidateRegistration(name, email, admin.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	u, err := users.Create(ctx, models.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: reg.PasswordHash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("seeded admin user", zap.String("email", u.Email), zap.String("user_id", u.ID.Hex()))
	return nil
}
