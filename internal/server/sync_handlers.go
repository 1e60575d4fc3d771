// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"tally/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetPendingSyncRequests handles GET /api/tabs/sync/pending
func (s *Server) GetPendingSyncRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	requests, err := s.syncService.ListPending(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// RespondToSyncRequest handles POST /api/tabs/sync/:id/respond
func (s *Server) RespondToSyncRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Action          string `json:"action"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Action != "accept" && req.Action != "reject" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("action must be accept or reject"))
	}

	resolved, respondErr := s.syncService.Respond(c.Context(), userID, requestID,
		req.Action == "accept", req.RejectionReason)
	if respondErr != nil {
		return respondServiceError(c, respondErr)
	}
	return c.JSON(resolved)
}

// CancelSyncRequest handles DELETE /api/tabs/sync/:id
func (s *Server) CancelSyncRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if cancelErr := s.syncService.Cancel(c.Context(), userID, requestID); cancelErr != nil {
		return respondServiceError(c, cancelErr)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
