package models

import (
	"time"
)

// FriendStatus represents the status of a friend relation.
type FriendStatus string

const (
	// FriendStatusPending indicates a friend request awaiting a response.
	FriendStatusPending FriendStatus = "pending"
	// FriendStatusAccepted indicates an established friendship.
	FriendStatusAccepted FriendStatus = "accepted"
	// FriendStatusBlocked indicates a blocked relation.
	FriendStatusBlocked FriendStatus = "blocked"
)

// FriendRelation is one directed projection of a logical friendship edge.
//
// A verified friendship is materialized as two rows sharing one PairID, one
// owned by each participant. The two rows always carry the same status and
// are only ever written together; single-row mutation is never exposed.
//
// An unverified relation (a manually entered contact) is a single row with
// no PairID and no PeerID: a private address-book entry with no reciprocal.
type FriendRelation struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	PairID  string `gorm:"type:varchar(36);index" json:"pair_id,omitempty"`
	OwnerID uint   `gorm:"not null;uniqueIndex:idx_relation_owner_peer" json:"owner_id"`
	PeerID  *uint  `gorm:"uniqueIndex:idx_relation_owner_peer" json:"peer_id,omitempty"`

	// PeerName is the display snapshot for unverified contacts. For verified
	// relations the peer's live User row is authoritative so renames propagate.
	PeerName  string `json:"peer_name,omitempty"`
	PeerEmail string `json:"peer_email,omitempty"`
	PeerPhone string `json:"peer_phone,omitempty"`

	Status   FriendStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Verified bool         `gorm:"not null;default:false" json:"verified"`

	// Initiator is true on the row owned by the user who sent the request.
	Initiator bool `gorm:"not null;default:false" json:"initiator"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner User  `gorm:"foreignKey:OwnerID" json:"-"`
	Peer  *User `gorm:"foreignKey:PeerID" json:"peer,omitempty"`
}

// TableName specifies the table name for GORM.
func (FriendRelation) TableName() string {
	return "friend_relations"
}
