package repository

import (
	"context"
	"errors"
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Create and GetByID", func(t *testing.T) {
		user := &models.User{Username: "ur_alice", Email: "ur_alice@e.com", Password: "hash"}
		require.NoError(t, repo.Create(ctx, user))
		require.NotZero(t, user.ID)

		fetched, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "ur_alice", fetched.Username)
	})

	t.Run("GetByID unknown reports not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "NOT_FOUND", appErr.Code)
	})

	t.Run("Create duplicate email rejected", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.User{Username: "ur_bob", Email: "ur_bob@e.com"}))

		err := repo.Create(ctx, &models.User{Username: "ur_bob2", Email: "ur_bob@e.com"})
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})

	t.Run("GetByEmail", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "ur_bob@e.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "ur_bob", user.Username)

		// Unknown addresses return nil, nil so callers can stay enumeration-safe.
		user, err = repo.GetByEmail(ctx, "ghost@e.com")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("GetByUsername", func(t *testing.T) {
		user, err := repo.GetByUsername(ctx, "ur_bob")
		require.NoError(t, err)
		require.NotNil(t, user)

		user, err = repo.GetByUsername(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("Update", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "ur_bob@e.com")
		require.NoError(t, err)
		require.NotNil(t, user)

		user.Avatar = "https://e.com/avatar.png"
		require.NoError(t, repo.Update(ctx, user))

		fetched, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://e.com/avatar.png", fetched.Avatar)
	})
}

func TestUserRepositorySearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	self := createTestUser(t, db, "search_Chris")
	match1 := createTestUser(t, db, "search_chrome")
	createTestUser(t, db, "search_dana")

	t.Run("case-insensitive match on username", func(t *testing.T) {
		users, err := repo.Search(ctx, "CHR", self.ID, 20)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, match1.Username, users[0].Username)
	})

	t.Run("the searching user is excluded", func(t *testing.T) {
		users, err := repo.Search(ctx, "search_", self.ID, 20)
		require.NoError(t, err)
		for _, u := range users {
			assert.NotEqual(t, self.ID, u.ID)
		}
		assert.Len(t, users, 2)
	})

	t.Run("limit is clamped", func(t *testing.T) {
		users, err := repo.Search(ctx, "search_", self.ID, 1)
		require.NoError(t, err)
		assert.Len(t, users, 1)

		// Non-positive limits fall back to the default instead of returning nothing.
		users, err = repo.Search(ctx, "search_", self.ID, 0)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}
