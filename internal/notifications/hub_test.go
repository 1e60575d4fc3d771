package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Register works with a nil conn because TrySend only touches the channel,
// which keeps these tests free of real websocket plumbing.

func TestHub_RegisterAndUnregister(t *testing.T) {
	t.Parallel()
	h := NewHub()

	assert.False(t, h.IsOnline(1))

	client, err := h.Register(1, nil)
	require.NoError(t, err)
	assert.True(t, h.IsOnline(1))
	assert.Equal(t, uint(1), client.UserID)

	h.UnregisterClient(client)
	assert.False(t, h.IsOnline(1))

	// Unregistering twice is harmless.
	h.UnregisterClient(client)
	assert.False(t, h.IsOnline(1))
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	t.Parallel()
	h := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := h.Register(1, nil)
		require.NoError(t, err)
	}

	_, err := h.Register(1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user connection limit")

	// Another user is unaffected.
	_, err = h.Register(2, nil)
	require.NoError(t, err)
}

func TestHub_BroadcastDeliversToAllUserClients(t *testing.T) {
	t.Parallel()
	h := NewHub()

	first, err := h.Register(1, nil)
	require.NoError(t, err)
	second, err := h.Register(1, nil)
	require.NoError(t, err)
	other, err := h.Register(2, nil)
	require.NoError(t, err)

	h.Broadcast(1, `{"event":"ping"}`)

	for _, c := range []*Client{first, second} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, `{"event":"ping"}`, string(msg))
		case <-time.After(time.Second):
			t.Fatal("expected a broadcast message")
		}
	}

	select {
	case <-other.Send:
		t.Fatal("broadcast leaked to another user")
	default:
	}
}

func TestHub_BroadcastToOfflineUserIsNoOp(t *testing.T) {
	t.Parallel()
	h := NewHub()
	h.Broadcast(99, "nobody home")
}

func TestHub_TrySendDropsWhenBufferFull(t *testing.T) {
	t.Parallel()
	h := NewHub()
	client, err := h.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < cap(client.Send); i++ {
		client.TrySend([]byte("fill"))
	}
	// Does not block or panic once full.
	client.TrySend([]byte("dropped"))
	assert.Len(t, client.Send, cap(client.Send))
}

func TestHub_WiringForwardsRedisMessages(t *testing.T) {
	t.Parallel()
	client := newTestRedis(t)
	n := NewNotifier(client)
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ws, err := h.Register(5, nil)
	require.NoError(t, err)

	require.NoError(t, h.StartWiring(ctx, n))

	require.Eventually(t, func() bool {
		if err := n.PublishUser(ctx, 5, "hello"); err != nil {
			return false
		}
		select {
		case msg := <-ws.Send:
			assert.Equal(t, "hello", string(msg))
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
