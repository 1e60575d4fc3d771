package service

import (
	"context"
	"strings"

	"tally/internal/models"
	"tally/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendService owns the friend-relationship state machine.
//
// Verified friendships live as reciprocal row pairs; every mutation here goes
// through pair-level writes inside one transaction, so the two directed rows
// can never disagree on status.
type FriendService struct {
	db         *gorm.DB
	users      repository.UserRepository
	friends    repository.FriendRepository
	dispatcher Dispatcher
}

// NewFriendService creates a new friend service.
func NewFriendService(db *gorm.DB, dispatcher Dispatcher) *FriendService {
	return &FriendService{
		db:         db,
		users:      repository.NewUserRepository(db),
		friends:    repository.NewFriendRepository(db),
		dispatcher: dispatcher,
	}
}

// SendRequest resolves the tag and creates a reciprocal PENDING pair.
func (s *FriendService) SendRequest(ctx context.Context, fromID uint, tag string) (*models.FriendRelation, error) {
	sender, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}

	target, err := s.users.GetByTag(ctx, strings.TrimSpace(tag))
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, models.NewNotFoundError("Account", tag)
	}
	if target.ID == fromID {
		return nil, models.NewValidationError("you cannot send a friend request to yourself")
	}

	var mine *models.FriendRelation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := repository.NewFriendRepository(tx)

		existing, err := friends.GetVerifiedBetween(ctx, fromID, target.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			switch {
			case existing.Status == models.FriendStatusAccepted:
				return models.NewConflictError("you are already friends with this user")
			case existing.Initiator:
				return models.NewConflictError("you already sent this user a friend request")
			default:
				return models.NewConflictError("this user already sent you a friend request")
			}
		}

		pairID := uuid.NewString()
		mine = &models.FriendRelation{
			PairID:    pairID,
			OwnerID:   fromID,
			PeerID:    &target.ID,
			PeerName:  target.Name,
			Status:    models.FriendStatusPending,
			Verified:  true,
			Initiator: true,
		}
		theirs := &models.FriendRelation{
			PairID:    pairID,
			OwnerID:   target.ID,
			PeerID:    &sender.ID,
			PeerName:  sender.Name,
			Status:    models.FriendStatusPending,
			Verified:  true,
			Initiator: false,
		}
		return friends.CreatePair(ctx, mine, theirs)
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.dispatcher, target.ID, EventFriendRequestReceived, map[string]interface{}{
		"relation_id": mine.ID,
		"from_id":     sender.ID,
		"from_name":   sender.Name,
		"from_tag":    sender.Tag,
	})
	return mine, nil
}

// Respond accepts or rejects an incoming PENDING request. Acceptance flips
// both directed rows together; rejection removes them both. Responding to a
// relation that is no longer pending fails rather than double-applying.
func (s *FriendService) Respond(ctx context.Context, userID, relationID uint, accept bool) (*models.FriendRelation, error) {
	relation, err := s.friends.GetByID(ctx, relationID)
	if err != nil {
		return nil, err
	}
	if relation.OwnerID != userID || !relation.Verified {
		return nil, models.NewNotFoundError("Friend relation", relationID)
	}
	if relation.Initiator {
		return nil, models.NewNotFoundError("Friend relation", relationID)
	}
	if relation.Status != models.FriendStatusPending {
		return nil, models.NewConflictError("friend request already resolved")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := repository.NewFriendRepository(tx)
		if accept {
			rows, err := friends.UpdatePairStatus(ctx, relation.PairID, models.FriendStatusPending, models.FriendStatusAccepted)
			if err != nil {
				return err
			}
			if rows != 2 {
				return models.NewConflictError("friend request already resolved")
			}
			return nil
		}
		rows, err := friends.DeletePairIfStatus(ctx, relation.PairID, models.FriendStatusPending)
		if err != nil {
			return err
		}
		if rows != 2 {
			return models.NewConflictError("friend request already resolved")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := EventFriendRequestRejected
	if accept {
		event = EventFriendRequestAccepted
	}
	if relation.PeerID != nil {
		notify(ctx, s.dispatcher, *relation.PeerID, event, map[string]interface{}{
			"relation_id": relationID,
			"by_id":       userID,
		})
	}
	if !accept {
		return nil, nil
	}
	relation.Status = models.FriendStatusAccepted
	return relation, nil
}

// Cancel withdraws the caller's own still-PENDING outgoing request.
func (s *FriendService) Cancel(ctx context.Context, userID, relationID uint) error {
	relation, err := s.friends.GetByID(ctx, relationID)
	if err != nil {
		return err
	}
	if relation.OwnerID != userID || !relation.Verified || !relation.Initiator {
		return models.NewNotFoundError("Friend relation", relationID)
	}
	if relation.Status != models.FriendStatusPending {
		return models.NewConflictError("friend request already resolved")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := repository.NewFriendRepository(tx)
		rows, err := friends.DeletePairIfStatus(ctx, relation.PairID, models.FriendStatusPending)
		if err != nil {
			return err
		}
		if rows != 2 {
			return models.NewConflictError("friend request already resolved")
		}
		return nil
	})
}

// Remove deletes an ACCEPTED pair and cascades: tabs either side holds
// against the other and any pending sync requests between them go too.
// Returns the removed peer's id.
func (s *FriendService) Remove(ctx context.Context, userID, relationID uint) (uint, error) {
	relation, err := s.friends.GetByID(ctx, relationID)
	if err != nil {
		return 0, err
	}
	if relation.OwnerID != userID || !relation.Verified || relation.PeerID == nil {
		return 0, models.NewNotFoundError("Friend relation", relationID)
	}
	if relation.Status != models.FriendStatusAccepted {
		return 0, models.NewInvalidStateError("only an accepted friend can be removed")
	}
	peerID := *relation.PeerID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := repository.NewFriendRepository(tx)
		tabs := repository.NewTabRepository(tx)
		syncs := repository.NewSyncRepository(tx)

		if err := friends.DeletePair(ctx, relation.PairID); err != nil {
			return err
		}
		if err := tabs.DeleteLinkedBetween(ctx, userID, peerID); err != nil {
			return err
		}
		return syncs.DeletePendingBetween(ctx, userID, peerID)
	})
	if err != nil {
		return 0, err
	}

	notify(ctx, s.dispatcher, peerID, EventFriendRemoved, map[string]interface{}{
		"by_id": userID,
	})
	return peerID, nil
}

// ListIncoming returns PENDING requests addressed to the user.
func (s *FriendService) ListIncoming(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	return s.friends.ListIncoming(ctx, userID)
}

// ListOutgoing returns the user's own PENDING requests.
func (s *FriendService) ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	return s.friends.ListOutgoing(ctx, userID)
}

// ListAccepted returns one relation per accepted peer, with peer display data
// taken from the live account row so renames propagate.
func (s *FriendService) ListAccepted(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	return s.friends.ListAccepted(ctx, userID)
}

// AreFriends reports whether a verified ACCEPTED pair links the two users.
// The sync coordinator uses this to gate propagation.
func (s *FriendService) AreFriends(ctx context.Context, userID, peerID uint) (bool, error) {
	relation, err := s.friends.GetVerifiedBetween(ctx, userID, peerID)
	if err != nil {
		return false, err
	}
	return relation != nil && relation.Status == models.FriendStatusAccepted, nil
}

// AddContact stores a one-sided unverified address-book entry. Contacts have
// no reciprocal row and never participate in sync propagation.
func (s *FriendService) AddContact(ctx context.Context, userID uint, name, email, phone string) (*models.FriendRelation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("contact name is required")
	}
	contact := &models.FriendRelation{
		OwnerID:   userID,
		PeerName:  name,
		PeerEmail: strings.TrimSpace(email),
		PeerPhone: strings.TrimSpace(phone),
		Status:    models.FriendStatusAccepted,
		Verified:  false,
		Initiator: true,
	}
	if err := s.friends.Create(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// ListContacts returns the user's unverified contacts.
func (s *FriendService) ListContacts(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	return s.friends.ListContacts(ctx, userID)
}

// DeleteContact removes an unverified contact owned by the user.
func (s *FriendService) DeleteContact(ctx context.Context, userID, contactID uint) error {
	contact, err := s.friends.GetByID(ctx, contactID)
	if err != nil {
		return err
	}
	if contact.OwnerID != userID || contact.Verified {
		return models.NewNotFoundError("Contact", contactID)
	}
	return s.friends.Delete(ctx, contactID)
}
