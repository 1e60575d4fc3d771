// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"tally/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for account data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByTag(ctx context.Context, tag string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	GetStats(ctx context.Context, userID uint) (*models.UserStats, error)
}

// userRepository implements UserRepository
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Preserved as-is: tag generation retries on duplicate keys.
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no such user
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByTag(ctx context.Context, tag string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("tag = ?", tag).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no such tag
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	stats := &models.UserStats{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Tab{}).
		Where("owner_id = ? AND status != ?", userID, models.TabStatusSettled).
		Count(&stats.ActiveTabs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := db.Model(&models.FriendRelation{}).
		Where("owner_id = ? AND status = ? AND verified = ?", userID, models.FriendStatusAccepted, true).
		Count(&stats.TotalFriends).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var tabs []models.Tab
	if err := db.
		Where("owner_id = ? AND status != ?", userID, models.TabStatusSettled).
		Find(&tabs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, tab := range tabs {
		if tab.Role == models.TabRoleCreditor {
			stats.TotalOwed += tab.Amount
		} else {
			stats.TotalDue += tab.Amount
		}
	}
	stats.Balance = stats.TotalOwed - stats.TotalDue

	return stats, nil
}
