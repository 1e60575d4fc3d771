package models

import (
	"time"
)

// TabStatus represents the lifecycle state of a tab.
// Transitions are linear: active -> repayment_pending -> settled.
type TabStatus string

const (
	// TabStatusActive indicates an open debt.
	TabStatusActive TabStatus = "active"
	// TabStatusRepaymentPending indicates a declared but unconfirmed repayment.
	TabStatusRepaymentPending TabStatus = "repayment_pending"
	// TabStatusSettled indicates a confirmed, closed debt.
	TabStatusSettled TabStatus = "settled"
)

// TabRole is the owner's side of the debt.
type TabRole string

const (
	// TabRoleCreditor means the owner is owed the amount.
	TabRoleCreditor TabRole = "creditor"
	// TabRoleDebtor means the owner owes the amount.
	TabRoleDebtor TabRole = "debtor"
)

// Opposite returns the counterpart role.
func (r TabRole) Opposite() TabRole {
	if r == TabRoleCreditor {
		return TabRoleDebtor
	}
	return TabRoleCreditor
}

// Tab is a debt record owned by exactly one account.
//
// A tab with no LinkedTabID is purely local. Two linked tabs form a mirrored
// pair: each references the other's id, and once linked they may only reach
// settled together through the sync protocol, never independently.
type Tab struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Role        TabRole   `gorm:"type:varchar(10);not null" json:"role"`
	Amount      float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Description string    `gorm:"not null" json:"description"`
	Status      TabStatus `gorm:"type:varchar(20);default:'active'" json:"status"`

	// PeerName is a display snapshot of the counterpart, used for tabs whose
	// counterpart has no account or whose link is not (yet) established.
	PeerName string `json:"peer_name,omitempty"`

	LinkedPeerID *uint `gorm:"index" json:"linked_peer_id,omitempty"`
	LinkedTabID  *uint `json:"linked_tab_id,omitempty"`

	RepaymentRequestedAt *time.Time `json:"repayment_requested_at,omitempty"`
	SettledAt            *time.Time `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Tab) TableName() string {
	return "tabs"
}

// Linked reports whether this tab has an established mirror.
func (t *Tab) Linked() bool {
	return t.LinkedTabID != nil
}
