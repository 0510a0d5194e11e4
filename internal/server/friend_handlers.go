// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"time"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AddFriend handles POST /api/friends/:userId
func (s *Server) AddFriend(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	friendship, addErr := s.chatService.AddFriend(ctx, userID, targetUserID)
	if addErr != nil {
		return respondAppError(c, addErr)
	}

	caller, getErr := s.userRepo.GetByID(ctx, userID)
	if getErr != nil {
		return respondAppError(c, getErr)
	}
	target, getErr := s.userRepo.GetByID(ctx, targetUserID)
	if getErr != nil {
		return respondAppError(c, getErr)
	}

	// Notify both endpoints so UIs update immediately.
	now := time.Now().UTC().Format(time.RFC3339Nano)
	s.publishUserEvent(targetUserID, EventFriendAdded, map[string]interface{}{
		"friend":     userSummary(*caller),
		"created_at": now,
	})
	s.publishUserEvent(userID, EventFriendAdded, map[string]interface{}{
		"friend":     userSummary(*target),
		"created_at": now,
	})

	return c.Status(fiber.StatusCreated).JSON(friendship)
}

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	friends, err := s.chatService.GetFriends(ctx, userID)
	if err != nil {
		return respondAppError(c, err)
	}

	publicFriends := make([]models.PublicUser, 0, len(friends))
	for _, f := range friends {
		publicFriends = append(publicFriends, f.Public())
	}
	return c.JSON(fiber.Map{"friends": publicFriends})
}
