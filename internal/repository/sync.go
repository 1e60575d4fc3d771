package repository

import (
	"context"
	"errors"
	"time"

	"tally/internal/models"

	"gorm.io/gorm"
)

// SyncRepository defines the interface for sync request data operations.
type SyncRepository interface {
	Create(ctx context.Context, req *models.SyncRequest) error
	GetByID(ctx context.Context, id uint) (*models.SyncRequest, error)
	ListPendingForTarget(ctx context.Context, targetID uint) ([]models.SyncRequest, error)
	HasPendingTriple(ctx context.Context, initiatorTabID, targetID uint, reqType models.SyncRequestType) (bool, error)
	MarkResolved(ctx context.Context, id uint, status models.SyncRequestStatus, reason string, targetTabID *uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeletePendingBetween(ctx context.Context, userA, userB uint) error
}

// syncRepository implements SyncRepository
type syncRepository struct {
	db *gorm.DB
}

// NewSyncRepository creates a new sync request repository
func NewSyncRepository(db *gorm.DB) SyncRepository {
	return &syncRepository{db: db}
}

func (r *syncRepository) Create(ctx context.Context, req *models.SyncRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *syncRepository) GetByID(ctx context.Context, id uint) (*models.SyncRequest, error) {
	var req models.SyncRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Sync request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *syncRepository) ListPendingForTarget(ctx context.Context, targetID uint) ([]models.SyncRequest, error) {
	var reqs []models.SyncRequest
	if err := r.db.WithContext(ctx).
		Where("target_id = ? AND status = ?", targetID, models.SyncStatusPending).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// HasPendingTriple reports whether a pending request of this type already
// exists for the same source tab and recipient. Used to reject duplicates.
func (r *syncRepository) HasPendingTriple(ctx context.Context, initiatorTabID, targetID uint, reqType models.SyncRequestType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncRequest{}).
		Where("initiator_tab_id = ? AND target_id = ? AND type = ? AND status = ?",
			initiatorTabID, targetID, reqType, models.SyncStatusPending).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// MarkResolved moves a request out of pending. The update is guarded on the
// pending status, so a request can only be resolved once; the returned row
// count tells the caller whether this resolution won.
func (r *syncRepository) MarkResolved(ctx context.Context, id uint, status models.SyncRequestStatus, reason string, targetTabID *uint) (int64, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"responded_at": &now,
	}
	if reason != "" {
		updates["rejection_reason"] = reason
	}
	if targetTabID != nil {
		updates["target_tab_id"] = targetTabID
	}
	res := r.db.WithContext(ctx).
		Model(&models.SyncRequest{}).
		Where("id = ? AND status = ?", id, models.SyncStatusPending).
		Updates(updates)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *syncRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.SyncRequest{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeletePendingBetween removes all pending requests flowing in either
// direction between two users. Used by the friend-removal cascade.
func (r *syncRepository) DeletePendingBetween(ctx context.Context, userA, userB uint) error {
	if err := r.db.WithContext(ctx).
		Where("status = ? AND ((initiator_id = ? AND target_id = ?) OR (initiator_id = ? AND target_id = ?))",
			models.SyncStatusPending, userA, userB, userB, userA).
		Delete(&models.SyncRequest{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
