// Package service implements the core ledger synchronization logic: account
// directory, friend relationships, tabs and the sync request protocol.
package service

import "context"

// Event names pushed through the notification dispatcher.
const (
	EventFriendRequestReceived = "friend.request_received"
	EventFriendRequestAccepted = "friend.request_accepted"
	EventFriendRequestRejected = "friend.request_rejected"
	EventFriendRemoved         = "friend.removed"
	EventSyncRequestReceived   = "sync.request_received"
	EventSyncRequestAccepted   = "sync.request_accepted"
	EventSyncRequestRejected   = "sync.request_rejected"
	EventSyncRequestCancelled  = "sync.request_cancelled"
)

// Dispatcher pushes protocol events to a user's connected sessions.
//
// Delivery is best-effort and at-most-once. Services call Notify only after
// the owning transaction has committed; a failed or dropped delivery never
// affects ledger state, the recipient's next poll is the fallback.
type Dispatcher interface {
	Notify(ctx context.Context, accountID uint, event string, payload interface{})
}

// notify is a nil-safe dispatch helper.
func notify(ctx context.Context, d Dispatcher, accountID uint, event string, payload interface{}) {
	if d == nil {
		return
	}
	d.Notify(ctx, accountID, event, payload)
}
