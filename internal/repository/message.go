package repository

import (
	"context"
	"errors"
	"time"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines the interface for direct-message data operations.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	GetMessagesBetween(ctx context.Context, userID1, userID2 uint) ([]models.Message, error)
	MarkRead(ctx context.Context, msgID uint) (*models.Message, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID uint) (int64, error)
}

// messageRepository implements MessageRepository
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// GetMessagesBetween returns the full conversation between two users in
// chronological order. The id tie-break keeps insertion order stable when
// timestamps collide.
func (r *messageRepository) GetMessagesBetween(ctx context.Context, userID1, userID2 uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID1, userID2, userID2, userID1).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// MarkRead flags a message as read. Unknown IDs report NotFound; marking an
// already-read message is a no-op and returns the message unchanged.
func (r *messageRepository) MarkRead(ctx context.Context, msgID uint) (*models.Message, error) {
	msg, err := r.GetByID(ctx, msgID)
	if err != nil {
		return nil, err
	}

	if msg.IsRead {
		return msg, nil
	}

	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", msgID).
		Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	msg.IsRead = true
	msg.ReadAt = &now
	return msg, nil
}

func (r *messageRepository) CountUnreadFrom(ctx context.Context, receiverID, senderID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
