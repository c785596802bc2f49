package seeding

import (
	"os"
	"testing"

	communitystore "github.com/devcanvas/devcanvas/internal/app/store/communities"
	userstore "github.com/devcanvas/devcanvas/internal/app/store/users"
	"github.com/devcanvas/devcanvas/internal/app/system/apperror"
	"github.com/devcanvas/devcanvas/internal/app/system/authutil"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	authutil.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestSeedAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := Admin{Email: "Root@Example.com", Password: "correct horse battery"}
	require.NoError(t, SeedAll(ctx, db, zap.NewNop(), admin))
	require.NoError(t, SeedAll(ctx, db, zap.NewNop(), admin))

	_, total, err := communitystore.New(db).List(ctx, "", 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, len(DefaultCommunities), total)

	users := userstore.New(db)
	n, err := users.Count(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	u, err := users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "Administrator", u.Name)
	assert.True(t, authutil.CheckPassword("correct horse battery", u.PasswordHash))
}

func TestSeedAll_NoAdminConfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	require.NoError(t, SeedAll(ctx, db, zap.NewNop(), Admin{}))

	n, err := userstore.New(db).Count(ctx, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedAll_WeakAdminPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := SeedAll(ctx, db, zap.NewNop(), Admin{Email: "root@example.com", Password: "short"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSeedAll_ExistingUserUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	_, err := users.Create(ctx, models.User{Name: "Regular", Email: "root@example.com"})
	require.NoError(t, err)

	require.NoError(t, SeedAll(ctx, db, zap.NewNop(), Admin{Email: "root@example.com", Password: "correct horse battery"}))

	u, err := users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)
}
