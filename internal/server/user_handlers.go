// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"strings"

	"tally/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.directory.GetUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetMyStats handles GET /api/users/me/stats
func (s *Server) GetMyStats(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	stats, err := s.directory.GetStats(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(stats)
}

// LookupTag handles GET /api/users/lookup?tag=Name%231234
func (s *Server) LookupTag(c *fiber.Ctx) error {
	tag := strings.TrimSpace(c.Query("tag"))
	if tag == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("tag query parameter is required"))
	}

	user, err := s.directory.ResolveByTag(c.Context(), tag)
	if err != nil {
		return respondServiceError(c, err)
	}

	// Only shareable identity fields, not the full account row.
	return c.JSON(fiber.Map{
		"id":   user.ID,
		"name": user.Name,
		"tag":  user.Tag,
	})
}
