// Package models contains data structures for the application's domain models.
package models

import "time"

// MaxMessageContentLength is the maximum accepted message body length in runes.
const MaxMessageContentLength = 500

// Message represents a direct message between two users.
type Message struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SenderID   uint       `gorm:"not null;index:idx_messages_pair" json:"sender_id"`
	ReceiverID uint       `gorm:"not null;index:idx_messages_pair" json:"receiver_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	ImagePath  string     `json:"image_path,omitempty"`
	IsRead     bool       `gorm:"default:false" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}
