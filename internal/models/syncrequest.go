package models

import (
	"time"
)

// SyncRequestType identifies which tab mutation a request propagates.
type SyncRequestType string

const (
	// SyncRequestCreate proposes creating a mirror for a new tab.
	SyncRequestCreate SyncRequestType = "create"
	// SyncRequestRepayment proposes settling both sides of a linked pair.
	SyncRequestRepayment SyncRequestType = "repayment"
	// SyncRequestDelete proposes deleting both sides of a linked pair.
	SyncRequestDelete SyncRequestType = "delete"
)

// SyncRequestStatus is the resolution state of a sync request.
// pending -> accepted or pending -> rejected; terminal once resolved.
type SyncRequestStatus string

const (
	// SyncStatusPending indicates an unresolved request.
	SyncStatusPending SyncRequestStatus = "pending"
	// SyncStatusAccepted indicates the target applied the mutation.
	SyncStatusAccepted SyncRequestStatus = "accepted"
	// SyncStatusRejected indicates the target declined the mutation.
	SyncStatusRejected SyncRequestStatus = "rejected"
)

// SyncRequest is the protocol envelope that propagates a tab mutation from
// its initiator into the counterpart's ledger.
//
// The snapshot fields (Description, Amount, InitiatorRole, names) duplicate
// the initiator's tab on purpose: resolving a request never re-reads the
// possibly-since-mutated live tab. This is an intentional eventual-consistency
// boundary, not denormalization drift.
type SyncRequest struct {
	ID     uint              `gorm:"primaryKey" json:"id"`
	Type   SyncRequestType   `gorm:"type:varchar(20);not null" json:"type"`
	Status SyncRequestStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	InitiatorID    uint   `gorm:"not null;index" json:"initiator_id"`
	InitiatorName  string `gorm:"not null" json:"initiator_name"`
	TargetID       uint   `gorm:"not null;index" json:"target_id"`
	InitiatorTabID uint   `gorm:"not null" json:"initiator_tab_id"`
	TargetTabID    *uint  `json:"target_tab_id,omitempty"`

	// Snapshot of the initiating tab at request creation time.
	Description   string  `json:"description"`
	Amount        float64 `gorm:"type:decimal(10,2)" json:"amount"`
	InitiatorRole TabRole `gorm:"type:varchar(10)" json:"initiator_role"`

	Message         string `gorm:"type:text" json:"message,omitempty"`
	RejectionReason string `gorm:"type:text" json:"rejection_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (SyncRequest) TableName() string {
	return "sync_requests"
}
