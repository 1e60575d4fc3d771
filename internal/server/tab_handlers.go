// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"tally/internal/middleware"
	"tally/internal/models"
	"tally/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateTab handles POST /api/tabs
func (s *Server) CreateTab(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var input service.CreateTabInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	tab, err := s.tabService.Create(c.Context(), userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	// Propagation is decided by the coordinator; its failure never undoes
	// the already-committed tab.
	syncReq, syncErr := s.syncService.OnTabCreated(c.Context(), tab)
	if syncErr != nil {
		middleware.Logger.WarnContext(c.UserContext(), "tab created but sync propagation failed",
			"tab_id", tab.ID, "error", syncErr)
	}

	resp := fiber.Map{"tab": tab}
	if syncReq != nil {
		resp["sync_request"] = syncReq
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetTabs handles GET /api/tabs
func (s *Server) GetTabs(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	tabs, err := s.tabService.ListByUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tabs)
}

// GetTab handles GET /api/tabs/:id
func (s *Server) GetTab(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	tabID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	tab, getErr := s.tabService.Get(c.Context(), userID, tabID)
	if getErr != nil {
		return respondServiceError(c, getErr)
	}
	return c.JSON(tab)
}

// DeclareRepayment handles POST /api/tabs/:id/repayment
func (s *Server) DeclareRepayment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	tabID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	tab, declareErr := s.tabService.DeclareRepayment(c.Context(), userID, tabID)
	if declareErr != nil {
		return respondServiceError(c, declareErr)
	}

	resp := fiber.Map{"tab": tab}
	if tab.Linked() {
		syncReq, syncErr := s.syncService.OnRepaymentDeclared(c.Context(), tab)
		if syncErr != nil {
			middleware.Logger.WarnContext(c.UserContext(), "repayment declared but sync propagation failed",
				"tab_id", tab.ID, "error", syncErr)
		}
		if syncReq != nil {
			resp["sync_request"] = syncReq
		}
	}
	return c.JSON(resp)
}

// ConfirmRepayment handles POST /api/tabs/:id/settle for unlinked tabs.
func (s *Server) ConfirmRepayment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	tabID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	tab, settleErr := s.tabService.ConfirmRepayment(c.Context(), userID, tabID)
	if settleErr != nil {
		return respondServiceError(c, settleErr)
	}
	return c.JSON(tab)
}

// DeleteTab handles DELETE /api/tabs/:id. Deleting a linked tab with a live
// friendship routes through the sync protocol instead of deleting directly.
func (s *Server) DeleteTab(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	tabID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	propagationRequired, tab, removeErr := s.tabService.Remove(c.Context(), userID, tabID)
	if removeErr != nil {
		return respondServiceError(c, removeErr)
	}
	if !propagationRequired {
		return c.SendStatus(fiber.StatusNoContent)
	}

	// Optional note for the peer; the body may legitimately be empty.
	var req struct {
		Message string `json:"message"`
	}
	_ = c.BodyParser(&req)

	syncReq, syncErr := s.syncService.OnTabDeletionRequested(c.Context(), tab, req.Message)
	if syncErr != nil {
		return respondServiceError(c, syncErr)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":       "pending_peer_confirmation",
		"sync_request": syncReq,
	})
}
