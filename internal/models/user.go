// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account in the tally ledger.
//
// Tag is the human-shareable unique identifier ("Name#NNNN") used to address
// accounts for friend requests. It is assigned at registration and immutable
// afterwards except on collision retry during creation.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	Tag       string    `gorm:"uniqueIndex;not null" json:"tag"`
	Password  string    `gorm:"not null" json:"-"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats summarizes a user's ledger position.
type UserStats struct {
	ActiveTabs   int64   `json:"active_tabs"`
	TotalFriends int64   `json:"total_friends"`
	TotalOwed    float64 `json:"total_owed"`
	TotalDue     float64 `json:"total_due"`
	Balance      float64 `json:"balance"`
}
