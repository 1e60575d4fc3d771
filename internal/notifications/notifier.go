// Package notifications provides best-effort real-time delivery of protocol
// events to connected sessions, via Redis pub/sub fanned out to websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"tally/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the wire envelope pushed to clients.
type Event struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier publishes notification payloads into per-user Redis channels.
// A nil Redis client degrades every operation to a no-op, which keeps the
// ledger fully functional without a broker.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Notify implements the dispatcher contract used by the services. Delivery
// is fire-and-forget: failures are counted and logged, never returned.
func (n *Notifier) Notify(ctx context.Context, accountID uint, event string, payload interface{}) {
	envelope := Event{
		ID:        uuid.NewString(),
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal notification", "event", event, "error", err)
		return
	}
	if err := n.PublishUser(ctx, accountID, string(data)); err != nil {
		middleware.RedisErrors.WithLabelValues("publish").Inc()
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			"event", event, "account_id", accountID, "error", err)
		return
	}
	middleware.NotificationsPublished.WithLabelValues(event).Inc()
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartPatternSubscriber subscribes to the per-user notification pattern and
// calls onMessage for each incoming message.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
