// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Friendship represents a single undirected friend edge between two users.
// Exactly one row exists per friend pair.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"user_id"`
	FriendID  uint      `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`

	User   User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Friend User `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// BeforeCreate normalizes the pair so UserID < FriendID. Together with the
// unique index this guarantees at most one row per pair regardless of which
// side initiated the add, even under concurrent inserts.
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	if f.UserID > f.FriendID {
		f.UserID, f.FriendID = f.FriendID, f.UserID
	}
	return nil
}

// OtherUser returns the endpoint of the edge that is not userID.
func (f *Friendship) OtherUser(userID uint) uint {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}
