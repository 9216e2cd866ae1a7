package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(context.Background(), New(TypeContactReceived, "Nuevo mensaje", map[string]string{"id": "c1"}))

	for _, ch := range []<-chan Notification{a, b} {
		select {
		case n := <-ch:
			assert.Equal(t, TypeContactReceived, n.Type)
			assert.JSONEq(t, `{"id":"c1"}`, string(n.Data))
		case <-time.After(time.Second):
			t.Fatal("subscriber got nothing")
		}
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	slow, unsubSlow := bus.Subscribe(1)
	fast, unsubFast := bus.Subscribe(8)
	defer unsubSlow()
	defer unsubFast()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			bus.Publish(context.Background(), New(TypeOrderPlaced, "", nil))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Len(t, slow, 1)
	assert.Len(t, fast, 5)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	require.Equal(t, 1, bus.Subscribers())

	unsub()
	unsub()
	assert.Equal(t, 0, bus.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	bus.Publish(context.Background(), New(TypeOrderPlaced, "", nil))
}

func TestHubStreamsNotifications(t *testing.T) {
	bus := NewBus()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(ctx, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	bus.Publish(context.Background(), New(TypeRegistrationPending, "Cooperativa pendiente", map[string]string{"email": "c@example.com"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeRegistrationPending, got.Type)
	assert.Equal(t, "Cooperativa pendiente", got.Title)

	conn.Close()
	assert.Eventually(t, func() bool { return bus.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
