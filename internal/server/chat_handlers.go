// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetMessages handles GET /api/messages/:userId — the full history between
// the caller and the given peer, oldest first. History stays readable even
// after an unfriend; only new sends are gated.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	peerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	messages, getErr := s.chatService.GetMessagesBetween(ctx, userID, peerID)
	if getErr != nil {
		return respondAppError(c, getErr)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// GetUnreadCount handles GET /api/messages/:userId/unread — how many
// messages from the given peer the caller has not read yet.
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	peerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	count, countErr := s.chatService.UnreadCountFrom(ctx, userID, peerID)
	if countErr != nil {
		return respondAppError(c, countErr)
	}
	return c.JSON(fiber.Map{"unread": count})
}
