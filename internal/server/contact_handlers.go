// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"tally/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AddContact handles POST /api/contacts
func (s *Server) AddContact(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	contact, err := s.friendService.AddContact(c.Context(), userID, req.Name, req.Email, req.Phone)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// GetContacts handles GET /api/contacts
func (s *Server) GetContacts(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	contacts, err := s.friendService.ListContacts(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(contacts)
}

// DeleteContact handles DELETE /api/contacts/:id
func (s *Server) DeleteContact(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	contactID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if deleteErr := s.friendService.DeleteContact(c.Context(), userID, contactID); deleteErr != nil {
		return respondServiceError(c, deleteErr)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
