package repository

import (
	"context"
	"errors"

	"tally/internal/models"

	"gorm.io/gorm"
)

// FriendRepository defines the interface for friend relation data operations.
//
// Verified relations are stored as two directed rows sharing a PairID; every
// write that touches a verified relation goes through the pair-level methods
// so no caller can observe a half-updated pair. Callers needing atomicity
// across repositories construct the repository over a transaction handle.
type FriendRepository interface {
	Create(ctx context.Context, relation *models.FriendRelation) error
	CreatePair(ctx context.Context, mine, theirs *models.FriendRelation) error
	GetByID(ctx context.Context, id uint) (*models.FriendRelation, error)
	GetPairRow(ctx context.Context, pairID string, ownerID uint) (*models.FriendRelation, error)
	GetVerifiedBetween(ctx context.Context, ownerID, peerID uint) (*models.FriendRelation, error)
	UpdatePairStatus(ctx context.Context, pairID string, from, to models.FriendStatus) (int64, error)
	DeletePair(ctx context.Context, pairID string) error
	DeletePairIfStatus(ctx context.Context, pairID string, status models.FriendStatus) (int64, error)
	Delete(ctx context.Context, id uint) error
	ListIncoming(ctx context.Context, userID uint) ([]models.FriendRelation, error)
	ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRelation, error)
	ListAccepted(ctx context.Context, userID uint) ([]models.FriendRelation, error)
	ListContacts(ctx context.Context, userID uint) ([]models.FriendRelation, error)
}

// friendRepository implements FriendRepository
type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) Create(ctx context.Context, relation *models.FriendRelation) error {
	if err := r.db.WithContext(ctx).Create(relation).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) CreatePair(ctx context.Context, mine, theirs *models.FriendRelation) error {
	if err := r.db.WithContext(ctx).Create(mine).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Create(theirs).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetByID(ctx context.Context, id uint) (*models.FriendRelation, error) {
	var relation models.FriendRelation
	if err := r.db.WithContext(ctx).Preload("Peer").First(&relation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Friend relation", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &relation, nil
}

func (r *friendRepository) GetPairRow(ctx context.Context, pairID string, ownerID uint) (*models.FriendRelation, error) {
	var relation models.FriendRelation
	if err := r.db.WithContext(ctx).
		Where("pair_id = ? AND owner_id = ?", pairID, ownerID).
		First(&relation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Friend relation", pairID)
		}
		return nil, models.NewInternalError(err)
	}
	return &relation, nil
}

func (r *friendRepository) GetVerifiedBetween(ctx context.Context, ownerID, peerID uint) (*models.FriendRelation, error) {
	var relation models.FriendRelation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND peer_id = ? AND verified = ?", ownerID, peerID, true).
		First(&relation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no relation exists
		}
		return nil, models.NewInternalError(err)
	}
	return &relation, nil
}

// UpdatePairStatus flips both directed rows of a pair in one guarded update.
// Returns the number of rows changed; anything other than 2 means the pair
// was not in the expected state and the caller must treat it as a conflict.
func (r *friendRepository) UpdatePairStatus(ctx context.Context, pairID string, from, to models.FriendStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FriendRelation{}).
		Where("pair_id = ? AND status = ?", pairID, from).
		Update("status", to)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *friendRepository) DeletePair(ctx context.Context, pairID string) error {
	if err := r.db.WithContext(ctx).
		Where("pair_id = ?", pairID).
		Delete(&models.FriendRelation{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) DeletePairIfStatus(ctx context.Context, pairID string, status models.FriendStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("pair_id = ? AND status = ?", pairID, status).
		Delete(&models.FriendRelation{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *friendRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.FriendRelation{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) ListIncoming(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	var relations []models.FriendRelation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ? AND initiator = ? AND verified = ?",
			userID, models.FriendStatusPending, false, true).
		Preload("Peer").
		Order("created_at DESC").
		Find(&relations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return relations, nil
}

func (r *friendRepository) ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	var relations []models.FriendRelation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ? AND initiator = ? AND verified = ?",
			userID, models.FriendStatusPending, true, true).
		Preload("Peer").
		Order("created_at DESC").
		Find(&relations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return relations, nil
}

// ListAccepted returns the user's accepted verified relations, one row per
// peer. Peer is preloaded so display data comes from the live account row,
// not the stored snapshot, and renames propagate.
func (r *friendRepository) ListAccepted(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	var relations []models.FriendRelation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ? AND verified = ?",
			userID, models.FriendStatusAccepted, true).
		Preload("Peer").
		Order("created_at DESC").
		Find(&relations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return relations, nil
}

func (r *friendRepository) ListContacts(ctx context.Context, userID uint) ([]models.FriendRelation, error) {
	var relations []models.FriendRelation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND verified = ?", userID, false).
		Order("created_at DESC").
		Find(&relations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return relations, nil
}
