// Package service provides application business logic (messaging, friends, accounts).
package service

import (
	"context"
	"unicode/utf8"

	"murmur/internal/models"
	"murmur/internal/repository"
)

// ChatService provides the direct-messaging business logic: the friend graph,
// the send authorization gate, and the message lifecycle.
type ChatService struct {
	friendRepo  repository.FriendRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
}

// SendMessageInput is the input for sending a direct message.
type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Content    string
	ImagePath  string
}

// NewChatService returns a new ChatService.
func NewChatService(
	friendRepo repository.FriendRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ChatService {
	return &ChatService{
		friendRepo:  friendRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// CanSend decides whether sender may deliver content to receiver. The checks
// run in a fixed order: friendship first, then content length. It is called
// fresh for every send; admission is never cached on a connection, so an
// unfriended pair loses the ability to message immediately.
func (s *ChatService) CanSend(ctx context.Context, senderID, receiverID uint, content string) error {
	friends, err := s.friendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	if !friends {
		return models.NewForbiddenError("You can only send messages to your friends")
	}

	if utf8.RuneCountInString(content) > models.MaxMessageContentLength {
		return models.NewValidationError("Message content exceeds the 500 character limit")
	}

	return nil
}

// SendMessage runs the authorization gate and persists the message. The
// returned message carries the store-assigned ID and timestamp; live
// delivery happens after this returns, never before.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if err := s.CanSend(ctx, in.SenderID, in.ReceiverID, in.Content); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		ImagePath:  in.ImagePath,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// AddFriend creates a friend edge between userID and friendID.
func (s *ChatService) AddFriend(ctx context.Context, userID, friendID uint) (*models.Friendship, error) {
	if userID == friendID {
		return nil, models.NewConflictError("You cannot add yourself as a friend")
	}

	if _, err := s.userRepo.GetByID(ctx, friendID); err != nil {
		return nil, err
	}

	existing, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("You are already friends with this user")
	}

	friendship := &models.Friendship{
		UserID:   userID,
		FriendID: friendID,
	}
	// The unique index still backstops the race where two adds for the same
	// pair pass the existence check together; the loser gets the same
	// Conflict as the check above would have produced.
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}

	return friendship, nil
}

// GetFriends returns the user's friends.
func (s *ChatService) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.friendRepo.GetFriends(ctx, userID)
}

// AreFriends reports whether the two users share a friend edge.
func (s *ChatService) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	return s.friendRepo.AreFriends(ctx, userID1, userID2)
}

// GetMessagesBetween returns the full message history between the user and a
// peer, oldest first.
func (s *ChatService) GetMessagesBetween(ctx context.Context, userID, otherUserID uint) ([]models.Message, error) {
	return s.messageRepo.GetMessagesBetween(ctx, userID, otherUserID)
}

// MarkMessageRead flags a message as read. Unknown IDs report NotFound;
// repeating the call for an already-read message is a no-op.
func (s *ChatService) MarkMessageRead(ctx context.Context, messageID uint) (*models.Message, error) {
	return s.messageRepo.MarkRead(ctx, messageID)
}

// UnreadCountFrom returns how many unread messages the user has from a
// specific sender.
func (s *ChatService) UnreadCountFrom(ctx context.Context, receiverID, senderID uint) (int64, error) {
	return s.messageRepo.CountUnreadFrom(ctx, receiverID, senderID)
}
