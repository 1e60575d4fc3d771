package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"tally/internal/models"
	"tally/internal/repository"

	"gorm.io/gorm"
)

const (
	tagPrefixMaxLen    = 20
	tagLookupAttempts  = 5
	tagInsertAttempts  = 5
	fallbackSuffixLen  = 6
	fallbackCharset    = "abcdefghijklmnopqrstuvwxyz0123456789"
	defaultTagBaseName = "user"
)

// DirectoryService resolves human-shareable tags to accounts and owns tag
// generation for new accounts.
type DirectoryService struct {
	db    *gorm.DB
	users repository.UserRepository
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{
		db:    db,
		users: repository.NewUserRepository(db),
	}
}

// ResolveByTag returns the account holding the exact tag.
func (s *DirectoryService) ResolveByTag(ctx context.Context, tag string) (*models.User, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || !strings.Contains(tag, "#") {
		return nil, models.NewValidationError("tag must look like Name#1234")
	}
	user, err := s.users.GetByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("Account", tag)
	}
	return user, nil
}

// GetUserByEmail returns the account with the given email, or nil.
func (s *DirectoryService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// GetUser returns the account with the given id.
func (s *DirectoryService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetStats returns the ledger summary for the given account.
func (s *DirectoryService) GetStats(ctx context.Context, id uint) (*models.UserStats, error) {
	return s.users.GetStats(ctx, id)
}

// CreateAccount persists a new account under a freshly generated unique tag.
// A duplicate-key failure on insert means another account grabbed the tag
// between generation and commit, so generation is retried rather than the
// error propagated.
func (s *DirectoryService) CreateAccount(ctx context.Context, user *models.User) error {
	existing, err := s.users.GetByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return models.NewConflictError("an account with this email already exists")
	}

	for attempt := 0; attempt < tagInsertAttempts; attempt++ {
		tag, err := s.GenerateUniqueTag(ctx, user.Name)
		if err != nil {
			return err
		}
		user.Tag = tag

		err = s.users.Create(ctx, user)
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return err
	}
	return models.NewConflictError("could not allocate a unique tag, try again")
}

// GenerateUniqueTag derives a tag from the display name: non-alphanumerics
// stripped, prefix capped, random 4-digit suffix. Retries a bounded number
// of times on collision, then falls back to a random alphanumeric suffix.
func (s *DirectoryService) GenerateUniqueTag(ctx context.Context, displayName string) (string, error) {
	base := cleanTagBase(displayName)

	for attempt := 0; attempt < tagLookupAttempts; attempt++ {
		candidate := fmt.Sprintf("%s#%04d", base, 1000+rand.Intn(9000))
		holder, err := s.users.GetByTag(ctx, candidate)
		if err != nil {
			return "", err
		}
		if holder == nil {
			return candidate, nil
		}
	}

	suffix := make([]byte, fallbackSuffixLen)
	for i := range suffix {
		suffix[i] = fallbackCharset[rand.Intn(len(fallbackCharset))]
	}
	return fmt.Sprintf("%s#%s", base, suffix), nil
}

// cleanTagBase strips everything but letters and digits and caps the length.
func cleanTagBase(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() >= tagPrefixMaxLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return defaultTagBaseName
	}
	return b.String()
}
