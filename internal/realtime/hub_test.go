package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestNotifierDeliversToRecipientsOnce(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	alice, bob := uuid.New(), uuid.New()
	ca := &Client{ID: "a", UserID: alice, Send: make(chan []byte, 4)}
	cb := &Client{ID: "b", UserID: bob, Send: make(chan []byte, 4)}
	hub.RegisterClient(ca)
	hub.RegisterClient(cb)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	n := NewHubNotifier(hub, nil)
	n.Notify(context.Background(), EventJobStatus, map[string]string{"status": "accepted"}, alice, alice, uuid.Nil)

	select {
	case raw := <-ca.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventJobStatus, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("alice got nothing")
	}
	assert.Len(t, ca.Send, 0)
	assert.Len(t, cb.Send, 0)
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := &Client{ID: "x", UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.RegisterClient(c)
	hub.UnregisterClient(c)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestStoppedHubDoesNotBlockClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{ID: "late", UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.RegisterClient(c)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.UnregisterClient(c)
		hub.RegisterClient(&Client{ID: "after", UserID: uuid.New(), Send: make(chan []byte, 1)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after Stop")
	}
	_, ok := <-c.Send
	assert.False(t, ok)
}
