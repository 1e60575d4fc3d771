package service

import (
	"context"

	"tally/internal/middleware"
	"tally/internal/models"
	"tally/internal/repository"

	"gorm.io/gorm"
)

// SyncService is the protocol engine that propagates tab mutations across a
// friend link. Every mutation travels as a SyncRequest the counterpart must
// explicitly accept or reject; resolution applies all ledger changes and the
// request's terminal status in one transaction.
type SyncService struct {
	db         *gorm.DB
	users      repository.UserRepository
	friends    repository.FriendRepository
	tabs       repository.TabRepository
	syncs      repository.SyncRepository
	dispatcher Dispatcher
}

// NewSyncService creates a new sync coordinator.
func NewSyncService(db *gorm.DB, dispatcher Dispatcher) *SyncService {
	return &SyncService{
		db:         db,
		users:      repository.NewUserRepository(db),
		friends:    repository.NewFriendRepository(db),
		tabs:       repository.NewTabRepository(db),
		syncs:      repository.NewSyncRepository(db),
		dispatcher: dispatcher,
	}
}

// linkEstablished reports whether a verified ACCEPTED pair links the users.
func linkEstablished(ctx context.Context, friends repository.FriendRepository, userID, peerID uint) (bool, error) {
	relation, err := friends.GetVerifiedBetween(ctx, userID, peerID)
	if err != nil {
		return false, err
	}
	return relation != nil && relation.Status == models.FriendStatusAccepted, nil
}

// OnTabCreated proposes a mirror for a freshly created tab. Without an
// accepted friendship the tab simply stays local and no request is made.
func (s *SyncService) OnTabCreated(ctx context.Context, tab *models.Tab) (*models.SyncRequest, error) {
	if tab.LinkedPeerID == nil {
		return nil, nil
	}
	linked, err := linkEstablished(ctx, s.friends, tab.OwnerID, *tab.LinkedPeerID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, nil
	}
	return s.createRequest(ctx, tab, models.SyncRequestCreate, nil, "")
}

// OnRepaymentDeclared proposes settling both sides of a linked pair.
// Repayment propagation requires an existing mirror; a severed friendship
// means no propagation and the declaring side keeps its local state.
func (s *SyncService) OnRepaymentDeclared(ctx context.Context, tab *models.Tab) (*models.SyncRequest, error) {
	if !tab.Linked() {
		return nil, models.NewInvalidStateError("repayment sync requires a linked mirror tab")
	}
	linked, err := linkEstablished(ctx, s.friends, tab.OwnerID, *tab.LinkedPeerID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, nil
	}
	return s.createRequest(ctx, tab, models.SyncRequestRepayment, tab.LinkedTabID, "")
}

// OnTabDeletionRequested proposes deleting both sides of a linked pair.
// The optional message lets the initiator explain the deletion to the peer.
func (s *SyncService) OnTabDeletionRequested(ctx context.Context, tab *models.Tab, message string) (*models.SyncRequest, error) {
	if !tab.Linked() {
		return nil, models.NewInvalidStateError("deletion sync requires a linked mirror tab")
	}
	linked, err := linkEstablished(ctx, s.friends, tab.OwnerID, *tab.LinkedPeerID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, models.NewStalePeerError("the friend link for this tab no longer exists")
	}
	return s.createRequest(ctx, tab, models.SyncRequestDelete, tab.LinkedTabID, message)
}

// createRequest builds the snapshot envelope and persists it, rejecting a
// duplicate while one of the same type is still pending for this tab/peer.
func (s *SyncService) createRequest(ctx context.Context, tab *models.Tab, reqType models.SyncRequestType, targetTabID *uint, message string) (*models.SyncRequest, error) {
	initiator, err := s.users.GetByID(ctx, tab.OwnerID)
	if err != nil {
		return nil, err
	}
	targetID := *tab.LinkedPeerID

	var req *models.SyncRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		syncs := repository.NewSyncRepository(tx)

		pending, err := syncs.HasPendingTriple(ctx, tab.ID, targetID, reqType)
		if err != nil {
			return err
		}
		if pending {
			return models.NewConflictError("a matching sync request is already pending")
		}

		req = &models.SyncRequest{
			Type:           reqType,
			Status:         models.SyncStatusPending,
			InitiatorID:    tab.OwnerID,
			InitiatorName:  initiator.Name,
			TargetID:       targetID,
			InitiatorTabID: tab.ID,
			TargetTabID:    targetTabID,
			Description:    tab.Description,
			Amount:         tab.Amount,
			InitiatorRole:  tab.Role,
			Message:        message,
		}
		return syncs.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	middleware.SyncRequestsTotal.WithLabelValues(string(reqType), "created").Inc()
	notify(ctx, s.dispatcher, targetID, EventSyncRequestReceived, req)
	return req, nil
}

// Respond resolves a pending request. Acceptance applies the proposed ledger
// mutation; rejection records the reason and touches no tabs. Either way the
// terminal status and any mutations commit in one transaction, so a
// half-applied resolution cannot be observed.
func (s *SyncService) Respond(ctx context.Context, userID, requestID uint, accept bool, reason string) (*models.SyncRequest, error) {
	req, err := s.syncs.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TargetID != userID {
		return nil, models.NewNotFoundError("Sync request", requestID)
	}
	if req.Status != models.SyncStatusPending {
		return nil, models.NewConflictError("sync request already resolved")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := repository.NewFriendRepository(tx)
		tabs := repository.NewTabRepository(tx)
		syncs := repository.NewSyncRepository(tx)

		if !accept {
			return markResolved(ctx, syncs, requestID, models.SyncStatusRejected, reason, nil)
		}

		// A request must not re-establish state across a link that was
		// severed while it sat pending.
		linked, err := linkEstablished(ctx, friends, req.InitiatorID, req.TargetID)
		if err != nil {
			return err
		}
		if !linked {
			return models.NewStalePeerError("the friend link behind this request no longer exists")
		}

		switch req.Type {
		case models.SyncRequestCreate:
			if _, err := tabs.GetByID(ctx, req.InitiatorTabID); err != nil {
				if models.IsKind(err, models.KindNotFound) {
					return models.NewInvalidStateError("the originating tab no longer exists")
				}
				return err
			}
			mirror, err := applyMirrorCreate(ctx, tabs, req)
			if err != nil {
				return err
			}
			return markResolved(ctx, syncs, requestID, models.SyncStatusAccepted, "", &mirror.ID)

		case models.SyncRequestRepayment:
			if req.TargetTabID == nil {
				return models.NewInvalidStateError("repayment request carries no mirror tab")
			}
			if err := applySettlement(ctx, tabs, req.InitiatorTabID); err != nil {
				return err
			}
			if err := applySettlement(ctx, tabs, *req.TargetTabID); err != nil {
				return err
			}
			return markResolved(ctx, syncs, requestID, models.SyncStatusAccepted, "", nil)

		case models.SyncRequestDelete:
			if req.TargetTabID != nil {
				if err := applyMirrorDelete(ctx, tabs, *req.TargetTabID); err != nil {
					return err
				}
			}
			if err := applyMirrorDelete(ctx, tabs, req.InitiatorTabID); err != nil {
				return err
			}
			return markResolved(ctx, syncs, requestID, models.SyncStatusAccepted, "", nil)

		default:
			return models.NewValidationError("unknown sync request type")
		}
	})
	if err != nil {
		return nil, err
	}

	outcome := "rejected"
	event := EventSyncRequestRejected
	if accept {
		outcome = "accepted"
		event = EventSyncRequestAccepted
	}
	middleware.SyncRequestsTotal.WithLabelValues(string(req.Type), outcome).Inc()

	resolved, err := s.syncs.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	notify(ctx, s.dispatcher, req.InitiatorID, event, resolved)
	return resolved, nil
}

// markResolved applies the guarded terminal-status update and converts a
// lost race into a conflict, rolling back the surrounding transaction.
func markResolved(ctx context.Context, syncs repository.SyncRepository, requestID uint, status models.SyncRequestStatus, reason string, targetTabID *uint) error {
	rows, err := syncs.MarkResolved(ctx, requestID, status, reason, targetTabID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.NewConflictError("sync request already resolved")
	}
	return nil
}

// ListPending returns the user's unresolved incoming requests, newest first.
func (s *SyncService) ListPending(ctx context.Context, userID uint) ([]models.SyncRequest, error) {
	return s.syncs.ListPendingForTarget(ctx, userID)
}

// Cancel withdraws the initiator's own still-pending request.
func (s *SyncService) Cancel(ctx context.Context, userID, requestID uint) error {
	req, err := s.syncs.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.InitiatorID != userID {
		return models.NewNotFoundError("Sync request", requestID)
	}
	if req.Status != models.SyncStatusPending {
		return models.NewConflictError("sync request already resolved")
	}
	if err := s.syncs.Delete(ctx, requestID); err != nil {
		return err
	}
	middleware.SyncRequestsTotal.WithLabelValues(string(req.Type), "cancelled").Inc()
	notify(ctx, s.dispatcher, req.TargetID, EventSyncRequestCancelled, map[string]interface{}{
		"request_id": requestID,
	})
	return nil
}
