package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(hub *Hub, buf int) *Client {
	return &Client{hub: hub, send: make(chan []byte, buf)}
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient(hub, 1)

	hub.Register(c)
	require.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	assert.Zero(t, hub.ClientCount())
	_, open := <-c.send
	assert.False(t, open)

	assert.NotPanics(t, func() { hub.Unregister(c) })
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	clients := []*Client{testClient(hub, 4), testClient(hub, 4), testClient(hub, 4)}
	for _, c := range clients {
		hub.Register(c)
	}

	hub.Broadcast([]byte(`{"type":"run:start"}`))

	for _, c := range clients {
		assert.JSONEq(t, `{"type":"run:start"}`, string(<-c.send))
	}
	assert.Zero(t, hub.Dropped())
}

func TestHub_FullQueueDropsAndCounts(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	slow := testClient(hub, 1)
	hub.Register(slow)

	for _, m := range []string{"a", "b", "c"} {
		hub.Broadcast([]byte(m))
	}

	assert.Equal(t, "a", string(<-slow.send))
	assert.Empty(t, slow.send)
	assert.EqualValues(t, 2, hub.Dropped())
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient(hub, 2)
	hub.Register(c)
	hub.Broadcast([]byte("last"))

	hub.Close()
	assert.Zero(t, hub.ClientCount())

	// Queued messages survive the close.
	assert.Equal(t, "last", string(<-c.send))
	_, open := <-c.send
	assert.False(t, open)

	late := testClient(hub, 1)
	hub.Register(late)
	assert.Zero(t, hub.ClientCount())
	_, open = <-late.send
	assert.False(t, open)

	assert.NotPanics(t, func() { hub.Unregister(c) })
}

func TestHub_SendToRequiresRegistration(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient(hub, 1)

	assert.False(t, hub.sendTo(c, []byte("x")))

	hub.Register(c)
	assert.True(t, hub.sendTo(c, []byte("x")))
	assert.False(t, hub.sendTo(c, []byte("y")), "queue full")

	hub.Close()
	assert.False(t, hub.sendTo(c, []byte("z")))
}
