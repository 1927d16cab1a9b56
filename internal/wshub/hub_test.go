package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questvote/internal/metrics"
)

func newTestHub() (*Hub, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewHub(m, zerolog.Nop()), m
}

func newTestClient(code string, buffer int) *Client {
	return NewClient(code, "", nil, buffer)
}

type chat struct {
	Message string `json:"message"`
}

// receive pops one queued message without blocking.
func receive(t *testing.T, c *Client) chat {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "Send closed")
		var got chat
		require.NoError(t, json.Unmarshal(data, &got))
		return got
	default:
		require.FailNow(t, "no message queued")
		return chat{}
	}
}

func TestRegisterAndBroadcast(t *testing.T) {
	h, _ := newTestHub()

	c1 := newTestClient("AAAAA", 16)
	c2 := newTestClient("AAAAA", 16)
	other := newTestClient("BBBBB", 16)

	h.Register("AAAAA", c1)
	h.Register("AAAAA", c2)
	h.Register("BBBBB", other)

	h.Broadcast("AAAAA", chat{Message: "hi"})

	assert.Equal(t, "hi", receive(t, c1).Message)
	assert.Equal(t, "hi", receive(t, c2).Message)
	assert.Empty(t, other.Send, "client in another room should not receive the message")
}

func TestBroadcastRemovesFailedClient(t *testing.T) {
	h, m := newTestHub()

	a := newTestClient("ROOM1", 16)
	b := newTestClient("ROOM1", 0) // nobody reads: every send fails
	c := newTestClient("ROOM1", 16)
	for _, cl := range []*Client{a, b, c} {
		h.Register("ROOM1", cl)
	}

	h.Broadcast("ROOM1", chat{Message: "first"})

	require.Equal(t, 2, h.Count("ROOM1"), "failed client should be removed")
	_, ok := <-b.Send
	assert.False(t, ok, "b.Send should be closed")
	assert.Equal(t, websocket.StatusPolicyViolation, b.closeStatus)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SendFailures))

	h.Broadcast("ROOM1", chat{Message: "second"})

	for _, cl := range []*Client{a, c} {
		assert.Equal(t, "first", receive(t, cl).Message)
		assert.Equal(t, "second", receive(t, cl).Message)
	}
}

func TestBroadcastPreservesOrder(t *testing.T) {
	h, _ := newTestHub()
	c := newTestClient("ROOM1", 256)
	h.Register("ROOM1", c)

	for i := 0; i < 200; i++ {
		h.Broadcast("ROOM1", chat{Message: fmt.Sprint(i)})
	}
	for i := 0; i < 200; i++ {
		require.Equal(t, fmt.Sprint(i), receive(t, c).Message, "message %d out of order", i)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h, m := newTestHub()

	c1 := newTestClient("ROOM1", 16)
	h.Register("ROOM1", c1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Connections))

	h.Unregister("ROOM1", c1)

	_, ok := <-c1.Send
	assert.False(t, ok, "c1.Send should be closed")
	assert.Zero(t, h.Count("ROOM1"))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Connections))
}

func TestUnregisterNonexistent(t *testing.T) {
	h, m := newTestHub()
	c := newTestClient("ROOM1", 1)

	assert.NotPanics(t, func() {
		h.Unregister("ROOM1", c)
		h.Register("ROOM1", c)
		h.Unregister("ROOM1", c)
		h.Unregister("ROOM1", c)
	})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Connections))
}

func TestBroadcastUnknownRoom(t *testing.T) {
	h, _ := newTestHub()
	assert.NotPanics(t, func() { h.Broadcast("NOPE1", chat{Message: "x"}) })
}

func TestCloseRoom(t *testing.T) {
	h, _ := newTestHub()
	c1 := newTestClient("ROOM1", 4)
	c2 := newTestClient("ROOM1", 4)
	keep := newTestClient("ROOM2", 4)
	h.Register("ROOM1", c1)
	h.Register("ROOM1", c2)
	h.Register("ROOM2", keep)

	h.CloseRoom("ROOM1")

	assert.Zero(t, h.Count("ROOM1"))
	assert.Equal(t, 1, h.Count("ROOM2"), "ROOM2 should be untouched")
	for _, c := range []*Client{c1, c2} {
		_, ok := <-c.Send
		assert.False(t, ok, "Send should be closed")
		assert.Equal(t, websocket.StatusGoingAway, c.closeStatus)
	}
}

func TestConcurrentRegisterBroadcast(t *testing.T) {
	h, _ := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newTestClient("ROOM1", 1)
			h.Register("ROOM1", c)
			h.Unregister("ROOM1", c)
		}()
		go func() {
			defer wg.Done()
			h.Broadcast("ROOM1", chat{Message: "x"})
		}()
	}
	wg.Wait()
	assert.Zero(t, h.Count("ROOM1"))
}

func TestIsClosed(t *testing.T) {
	assert.False(t, IsClosed(nil))
	assert.False(t, IsClosed(errors.New("boom")))
	assert.True(t, IsClosed(fmt.Errorf("reading: %w", context.Canceled)))
}
