// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// FriendRepository defines the interface for friend-graph data operations.
type FriendRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error)
	AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetFriends(ctx context.Context, userID uint) ([]models.User, error)
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

// friendRepository implements FriendRepository
type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

// Create inserts a friend edge. The model hook normalizes the pair and the
// unique index rejects a duplicate, so two concurrent adds for the same pair
// resolve to one row and one Conflict error here.
func (r *friendRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	if err := r.db.WithContext(ctx).Create(friendship).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("You are already friends with this user")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}

	var friendship models.Friendship
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND friend_id = ?", userID1, userID2).
		First(&friendship).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No friendship exists
		}
		return nil, models.NewInternalError(err)
	}
	return &friendship, nil
}

// AreFriends reports whether an edge exists between the two users. The check
// is symmetric: argument order never matters.
func (r *friendRepository) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	friendship, err := r.GetFriendshipBetweenUsers(ctx, userID1, userID2)
	if err != nil {
		return false, err
	}
	return friendship != nil, nil
}

func (r *friendRepository) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User

	// Each edge touches the user on either side; return the other endpoint.
	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN friendships f ON (users.id = f.user_id OR users.id = f.friend_id)").
		Where("(f.user_id = ? OR f.friend_id = ?) AND users.id != ?",
			userID, userID, userID).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	return users, nil
}

func (r *friendRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var friendships []models.Friendship
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR friend_id = ?", userID, userID).
		Find(&friendships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	ids := make([]uint, 0, len(friendships))
	for i := range friendships {
		ids = append(ids, friendships[i].OtherUser(userID))
	}
	return ids, nil
}
