// Package notify delivers admin notifications: an in-process fan-out bus, an
// optional Redis bridge joining several API instances and a websocket feed.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const (
	TypeContactReceived     = "contact.received"
	TypeRegistrationPending = "registration.pending"
	TypeOrderPlaced         = "order.placed"
	TypeOrderStatusChanged  = "order.status_changed"
)

// Notification is one message on the admin channel.
type Notification struct {
	Type  string          `json:"type"`
	Title string          `json:"title"`
	Data  json.RawMessage `json:"data,omitempty" swaggertype:"object"`
	At    time.Time       `json:"at"`
}

// New builds a notification with data encoded as JSON. Data that cannot be
// encoded is dropped.
func New(typ, title string, data any) Notification {
	n := Notification{Type: typ, Title: title, At: time.Now().UTC()}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			n.Data = b
		}
	}
	return n
}

// Publisher sends notifications. Publish never blocks on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, Notification) {}

// Bus fans notifications out to subscribers in this process. A subscriber
// whose buffer is full misses the message.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Notification]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Notification]struct{})}
}

func (b *Bus) Publish(ctx context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for ch := range b.subs {
		select {
		case ch <- n:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		zctx.From(ctx).Debug("Notification dropped for slow subscribers",
			zap.String("type", n.Type), zap.Int("subscribers", dropped))
	}
}

// Subscribe registers a subscriber with room for buf pending messages. The
// returned func unsubscribes and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(buf int) (<-chan Notification, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Notification, buf)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
