package repository

import (
	"context"
	"errors"
	"time"

	"tally/internal/models"

	"gorm.io/gorm"
)

// TabRepository defines the interface for tab data operations.
type TabRepository interface {
	Create(ctx context.Context, tab *models.Tab) error
	GetByID(ctx context.Context, id uint) (*models.Tab, error)
	GetForUser(ctx context.Context, id, userID uint) (*models.Tab, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Tab, error)
	Update(ctx context.Context, tab *models.Tab) error
	Delete(ctx context.Context, id uint) error
	UpdateStatusGuarded(ctx context.Context, id uint, from, to models.TabStatus, extra map[string]interface{}) (int64, error)
	Settle(ctx context.Context, id uint) (int64, error)
	SetLink(ctx context.Context, id uint, peerID, tabID uint) error
	DeleteLinkedBetween(ctx context.Context, userA, userB uint) error
}

// tabRepository implements TabRepository
type tabRepository struct {
	db *gorm.DB
}

// NewTabRepository creates a new tab repository
func NewTabRepository(db *gorm.DB) TabRepository {
	return &tabRepository{db: db}
}

func (r *tabRepository) Create(ctx context.Context, tab *models.Tab) error {
	if err := r.db.WithContext(ctx).Create(tab).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tabRepository) GetByID(ctx context.Context, id uint) (*models.Tab, error) {
	var tab models.Tab
	if err := r.db.WithContext(ctx).First(&tab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tab", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &tab, nil
}

// GetForUser fetches a tab visible to userID: either owned by them or the
// mirror of one of their own tabs. Missing and forbidden are the same error.
func (r *tabRepository) GetForUser(ctx context.Context, id, userID uint) (*models.Tab, error) {
	var tab models.Tab
	if err := r.db.WithContext(ctx).
		Where("id = ? AND (owner_id = ? OR linked_peer_id = ?)", id, userID, userID).
		First(&tab).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tab", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &tab, nil
}

func (r *tabRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Tab, error) {
	var tabs []models.Tab
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&tabs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tabs, nil
}

func (r *tabRepository) Update(ctx context.Context, tab *models.Tab) error {
	if err := r.db.WithContext(ctx).Save(tab).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tabRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Tab{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// UpdateStatusGuarded performs an optimistic lifecycle transition: the update
// only applies while the tab is still in the expected source state, so two
// racing transitions cannot both succeed.
func (r *tabRepository) UpdateStatusGuarded(ctx context.Context, id uint, from, to models.TabStatus, extra map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Tab{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// Settle closes a tab from any non-settled state and stamps the settlement
// time. Settling an already-settled tab affects zero rows.
func (r *tabRepository) Settle(ctx context.Context, id uint) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Tab{}).
		Where("id = ? AND status <> ?", id, models.TabStatusSettled).
		Updates(map[string]interface{}{
			"status":     models.TabStatusSettled,
			"settled_at": &now,
		})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *tabRepository) SetLink(ctx context.Context, id uint, peerID, tabID uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Tab{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"linked_peer_id": peerID,
			"linked_tab_id":  tabID,
		}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeleteLinkedBetween removes every tab either user holds against the other.
// Used by the friend-removal cascade.
func (r *tabRepository) DeleteLinkedBetween(ctx context.Context, userA, userB uint) error {
	if err := r.db.WithContext(ctx).
		Where("(owner_id = ? AND linked_peer_id = ?) OR (owner_id = ? AND linked_peer_id = ?)",
			userA, userB, userB, userA).
		Delete(&models.Tab{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
