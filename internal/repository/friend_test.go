package repository

import (
	"context"
	"errors"
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFriendRepository(db)
	ctx := context.Background()

	u1 := createTestUser(t, db, "fr_alice")
	u2 := createTestUser(t, db, "fr_bob")
	u3 := createTestUser(t, db, "fr_carol")

	t.Run("Create normalizes pair order", func(t *testing.T) {
		friendship := &models.Friendship{UserID: u2.ID, FriendID: u1.ID}
		require.NoError(t, repo.Create(ctx, friendship))

		assert.Less(t, friendship.UserID, friendship.FriendID)

		var stored models.Friendship
		require.NoError(t, db.First(&stored, friendship.ID).Error)
		assert.Equal(t, u1.ID, stored.UserID)
		assert.Equal(t, u2.ID, stored.FriendID)
	})

	t.Run("Duplicate pair conflicts regardless of order", func(t *testing.T) {
		err := repo.Create(ctx, &models.Friendship{UserID: u1.ID, FriendID: u2.ID})
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "CONFLICT", appErr.Code)

		err = repo.Create(ctx, &models.Friendship{UserID: u2.ID, FriendID: u1.ID})
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	t.Run("AreFriends is symmetric", func(t *testing.T) {
		ab, err := repo.AreFriends(ctx, u1.ID, u2.ID)
		require.NoError(t, err)
		ba, err := repo.AreFriends(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		assert.True(t, ab)
		assert.True(t, ba)

		ac, err := repo.AreFriends(ctx, u1.ID, u3.ID)
		require.NoError(t, err)
		assert.False(t, ac)
	})

	t.Run("GetFriendshipBetweenUsers returns nil for no edge", func(t *testing.T) {
		friendship, err := repo.GetFriendshipBetweenUsers(ctx, u1.ID, u3.ID)
		require.NoError(t, err)
		assert.Nil(t, friendship)
	})

	t.Run("GetFriends returns the other endpoint", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.Friendship{UserID: u3.ID, FriendID: u1.ID}))

		friends, err := repo.GetFriends(ctx, u1.ID)
		require.NoError(t, err)
		require.Len(t, friends, 2)

		names := []string{friends[0].Username, friends[1].Username}
		assert.Contains(t, names, u2.Username)
		assert.Contains(t, names, u3.Username)

		friends, err = repo.GetFriends(ctx, u2.ID)
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, u1.Username, friends[0].Username)
	})

	t.Run("GetFriendIDs", func(t *testing.T) {
		ids, err := repo.GetFriendIDs(ctx, u1.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{u2.ID, u3.ID}, ids)

		ids, err = repo.GetFriendIDs(ctx, u3.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{u1.ID}, ids)
	})
}
