package service

import (
	"context"
	"strings"
	"time"

	"tally/internal/models"
	"tally/internal/observability"
	"tally/internal/repository"

	"gorm.io/gorm"
)

// CreateTabInput carries the caller's side of a new debt record.
type CreateTabInput struct {
	Role        models.TabRole `json:"role"`
	Amount      float64        `json:"amount"`
	Description string         `json:"description"`
	PeerID      *uint          `json:"peer_id,omitempty"`
	PeerName    string         `json:"peer_name,omitempty"`
}

// TabService owns per-user debt records and their lifecycle.
//
// Linked tabs may only reach SETTLED through the sync protocol; the
// protocol-side mutators live at the bottom of this file and are reachable
// only from the sync coordinator's transaction.
type TabService struct {
	db      *gorm.DB
	tabs    repository.TabRepository
	friends repository.FriendRepository
}

// NewTabService creates a new tab service.
func NewTabService(db *gorm.DB) *TabService {
	return &TabService{
		db:      db,
		tabs:    repository.NewTabRepository(db),
		friends: repository.NewFriendRepository(db),
	}
}

// Create validates and persists a new ACTIVE tab. PeerID, when present, is
// the linkage candidate the sync coordinator decides on; the tab itself
// starts unlinked either way.
func (s *TabService) Create(ctx context.Context, ownerID uint, input CreateTabInput) (*models.Tab, error) {
	if input.Amount <= 0 {
		return nil, models.NewValidationError("amount must be greater than zero")
	}
	if input.Role != models.TabRoleCreditor && input.Role != models.TabRoleDebtor {
		return nil, models.NewValidationError("role must be creditor or debtor")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, models.NewValidationError("description is required")
	}
	if input.PeerID != nil && *input.PeerID == ownerID {
		return nil, models.NewValidationError("a tab cannot reference its owner as the peer")
	}

	tab := &models.Tab{
		OwnerID:      ownerID,
		Role:         input.Role,
		Amount:       input.Amount,
		Description:  description,
		Status:       models.TabStatusActive,
		PeerName:     strings.TrimSpace(input.PeerName),
		LinkedPeerID: input.PeerID,
	}
	if err := s.tabs.Create(ctx, tab); err != nil {
		return nil, err
	}
	observability.LedgerOperations.WithLabelValues("tab", "create").Inc()
	return tab, nil
}

// Get returns a tab visible to the user: their own, or the mirror of one of
// their own.
func (s *TabService) Get(ctx context.Context, userID, tabID uint) (*models.Tab, error) {
	return s.tabs.GetForUser(ctx, tabID, userID)
}

// ListByUser returns the user's own tabs, newest first.
func (s *TabService) ListByUser(ctx context.Context, userID uint) ([]models.Tab, error) {
	return s.tabs.ListByOwner(ctx, userID)
}

// DeclareRepayment moves an ACTIVE tab to REPAYMENT_PENDING. The transition
// is guarded, so concurrent declarations cannot both win.
func (s *TabService) DeclareRepayment(ctx context.Context, userID, tabID uint) (*models.Tab, error) {
	tab, err := s.tabs.GetByID(ctx, tabID)
	if err != nil {
		return nil, err
	}
	if tab.OwnerID != userID {
		return nil, models.NewNotFoundError("Tab", tabID)
	}

	now := time.Now()
	rows, err := s.tabs.UpdateStatusGuarded(ctx, tabID,
		models.TabStatusActive, models.TabStatusRepaymentPending,
		map[string]interface{}{"repayment_requested_at": &now})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.NewInvalidStateError("repayment can only be declared on an active tab")
	}
	observability.LedgerOperations.WithLabelValues("tab", "declare_repayment").Inc()

	tab.Status = models.TabStatusRepaymentPending
	tab.RepaymentRequestedAt = &now
	return tab, nil
}

// ConfirmRepayment settles an unlinked tab directly. Linked tabs must settle
// through the sync protocol so both mirrors close together.
func (s *TabService) ConfirmRepayment(ctx context.Context, userID, tabID uint) (*models.Tab, error) {
	tab, err := s.tabs.GetByID(ctx, tabID)
	if err != nil {
		return nil, err
	}
	if tab.OwnerID != userID {
		return nil, models.NewNotFoundError("Tab", tabID)
	}
	if tab.Linked() {
		return nil, models.NewInvalidStateError("a linked tab settles through its repayment request")
	}

	rows, err := s.tabs.Settle(ctx, tabID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.NewInvalidStateError("tab is already settled")
	}
	observability.LedgerOperations.WithLabelValues("tab", "settle_local").Inc()

	return s.tabs.GetByID(ctx, tabID)
}

// Remove deletes a tab the user owns. An unlinked tab is deleted outright.
// A linked tab whose friendship is still live is not deleted: the caller
// must route the deletion through the sync protocol, signalled by the
// returned flag. A linked tab whose friendship was severed is deleted
// unilaterally; the dangling reference on the peer side is invalid on its
// own lookups.
func (s *TabService) Remove(ctx context.Context, userID, tabID uint) (propagationRequired bool, tab *models.Tab, err error) {
	tab, err = s.tabs.GetByID(ctx, tabID)
	if err != nil {
		return false, nil, err
	}
	if tab.OwnerID != userID {
		return false, nil, models.NewNotFoundError("Tab", tabID)
	}

	if tab.Linked() {
		relation, err := s.friends.GetVerifiedBetween(ctx, userID, *tab.LinkedPeerID)
		if err != nil {
			return false, nil, err
		}
		if relation != nil && relation.Status == models.FriendStatusAccepted {
			return true, tab, nil
		}
	}

	if err := s.tabs.Delete(ctx, tabID); err != nil {
		return false, nil, err
	}
	observability.LedgerOperations.WithLabelValues("tab", "delete").Inc()
	return false, tab, nil
}

// Protocol-side mutators. These run inside the sync coordinator's resolution
// transaction over tx-scoped repositories; nothing user-facing calls them.

// applyMirrorCreate materializes the target-side mirror from the request
// snapshot and back-fills the link on both tabs.
func applyMirrorCreate(ctx context.Context, tabs repository.TabRepository, req *models.SyncRequest) (*models.Tab, error) {
	mirror := &models.Tab{
		OwnerID:      req.TargetID,
		Role:         req.InitiatorRole.Opposite(),
		Amount:       req.Amount,
		Description:  req.Description,
		Status:       models.TabStatusActive,
		PeerName:     req.InitiatorName,
		LinkedPeerID: &req.InitiatorID,
		LinkedTabID:  &req.InitiatorTabID,
	}
	if err := tabs.Create(ctx, mirror); err != nil {
		return nil, err
	}
	if err := tabs.SetLink(ctx, req.InitiatorTabID, req.TargetID, mirror.ID); err != nil {
		return nil, err
	}
	return mirror, nil
}

// applySettlement closes one side of a linked pair; both sides are settled
// in the same resolution transaction.
func applySettlement(ctx context.Context, tabs repository.TabRepository, tabID uint) error {
	rows, err := tabs.Settle(ctx, tabID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.NewInvalidStateError("tab is already settled")
	}
	return nil
}

// applyMirrorDelete removes one side of a linked pair.
func applyMirrorDelete(ctx context.Context, tabs repository.TabRepository, tabID uint) error {
	return tabs.Delete(ctx, tabID)
}
