package main

import (
	"context"

	"github.com/MikeMC777/coopmarket/internal/notify"
	"github.com/MikeMC777/coopmarket/internal/order"
)

// orderEvents forwards order events to the configured sinks and mirrors them
// to connected admins as notifications.
type orderEvents struct {
	sinks    []order.Events
	notifier notify.Publisher
}

var orderTitles = map[string]string{
	order.EventOrderPlaced:        "New order placed",
	order.EventOrderStatusChanged: "Order status changed",
}

func (e orderEvents) Publish(ctx context.Context, key string, env order.Envelope) {
	for _, s := range e.sinks {
		s.Publish(ctx, key, env)
	}
	if e.notifier == nil {
		return
	}
	title, ok := orderTitles[env.EventType]
	if !ok {
		title = env.EventType
	}
	e.notifier.Publish(ctx, notify.New(env.EventType, title, env.Payload))
}
