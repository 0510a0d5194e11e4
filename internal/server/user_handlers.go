// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"strings"
	"time"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SearchUsers handles GET /api/users/search?query=...
// Matches on username or email and never returns the caller.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	userID := c.Locals("userID").(uint)
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Search query is required"))
	}
	page := parsePagination(c, 20)

	users, err := s.userRepo.Search(ctx, query, userID, page.Limit)
	if err != nil {
		return respondAppError(c, err)
	}

	results := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		results = append(results, u.Public())
	}
	return c.JSON(fiber.Map{"users": results})
}
