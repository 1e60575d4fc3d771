// Package seed provides built-in demo data for development environments.
package seed

import (
	"errors"
	"fmt"

	"tally/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const demoPassword = "demo-password"

// Demo populates a development database with a pair of linked accounts, an
// accepted friendship and a mirrored tab between them, plus a handful of
// standalone accounts. Idempotent: a database that already has users is
// left untouched.
func Demo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		alice := &models.User{
			Name:     "Alice",
			Email:    "alice@tally.local",
			Tag:      "Alice#1001",
			Password: string(hashed),
		}
		bob := &models.User{
			Name:     "Bob",
			Email:    "bob@tally.local",
			Tag:      "Bob#2002",
			Password: string(hashed),
		}
		if err := tx.Create(alice).Error; err != nil {
			return err
		}
		if err := tx.Create(bob).Error; err != nil {
			return err
		}

		for i := 0; i < 5; i++ {
			name := gofakeit.FirstName()
			user := &models.User{
				Name:     name,
				Email:    gofakeit.Email(),
				Tag:      fmt.Sprintf("%s#%04d", name, gofakeit.Number(1000, 9999)),
				Password: string(hashed),
			}
			if err := tx.Create(user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue
				}
				return err
			}
		}

		pairID := uuid.NewString()
		relations := []models.FriendRelation{
			{
				PairID: pairID, OwnerID: alice.ID, PeerID: &bob.ID,
				PeerName: bob.Name, Status: models.FriendStatusAccepted,
				Verified: true, Initiator: true,
			},
			{
				PairID: pairID, OwnerID: bob.ID, PeerID: &alice.ID,
				PeerName: alice.Name, Status: models.FriendStatusAccepted,
				Verified: true, Initiator: false,
			},
		}
		if err := tx.Create(&relations).Error; err != nil {
			return err
		}

		amount := float64(gofakeit.Number(10, 200))
		description := gofakeit.ProductName()
		aliceTab := &models.Tab{
			OwnerID: alice.ID, Role: models.TabRoleCreditor,
			Amount: amount, Description: description,
			Status: models.TabStatusActive, PeerName: bob.Name,
			LinkedPeerID: &bob.ID,
		}
		if err := tx.Create(aliceTab).Error; err != nil {
			return err
		}
		bobTab := &models.Tab{
			OwnerID: bob.ID, Role: models.TabRoleDebtor,
			Amount: amount, Description: description,
			Status: models.TabStatusActive, PeerName: alice.Name,
			LinkedPeerID: &alice.ID, LinkedTabID: &aliceTab.ID,
		}
		if err := tx.Create(bobTab).Error; err != nil {
			return err
		}
		return tx.Model(aliceTab).Update("linked_tab_id", bobTab.ID).Error
	})
}
