// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"tally/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendFriendRequest handles POST /api/friends/requests
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Tag string `json:"tag"`
	}
	if err := c.BodyParser(&req); err != nil || req.Tag == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("tag is required"))
	}

	relation, err := s.friendService.SendRequest(c.Context(), userID, req.Tag)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(relation)
}

// GetIncomingRequests handles GET /api/friends/requests
func (s *Server) GetIncomingRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.ListIncoming(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// GetSentRequests handles GET /api/friends/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.ListOutgoing(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// RespondToFriendRequest handles POST /api/friends/requests/:id/respond
func (s *Server) RespondToFriendRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	relationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Action != "accept" && req.Action != "reject" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("action must be accept or reject"))
	}

	relation, respondErr := s.friendService.Respond(c.Context(), userID, relationID, req.Action == "accept")
	if respondErr != nil {
		return respondServiceError(c, respondErr)
	}
	if relation == nil {
		return c.JSON(fiber.Map{"status": "rejected"})
	}
	return c.JSON(relation)
}

// CancelFriendRequest handles DELETE /api/friends/requests/:id
func (s *Server) CancelFriendRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	relationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if cancelErr := s.friendService.Cancel(c.Context(), userID, relationID); cancelErr != nil {
		return respondServiceError(c, cancelErr)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	friends, err := s.friendService.ListAccepted(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(friends)
}

// RemoveFriend handles DELETE /api/friends/:id
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	relationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	peerID, removeErr := s.friendService.Remove(c.Context(), userID, relationID)
	if removeErr != nil {
		return respondServiceError(c, removeErr)
	}
	return c.JSON(fiber.Map{"removed_peer_id": peerID})
}
