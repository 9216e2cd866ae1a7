package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge publishes through a Redis channel and feeds everything received
// on it, including its own messages, into the local bus. Every instance
// running a bridge on the same channel sees every notification once.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	local   *Bus
}

func NewRedisBridge(rdb *redis.Client, channel string, local *Bus) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, local: local}
}

// Publish falls back to local delivery when Redis is unreachable.
func (r *RedisBridge) Publish(ctx context.Context, n Notification) {
	b, err := json.Marshal(n)
	if err == nil {
		err = r.rdb.Publish(ctx, r.channel, b).Err()
	}
	if err != nil {
		zctx.From(ctx).Warn("Redis publish failed, delivering locally", zap.Error(err))
		r.local.Publish(ctx, n)
	}
}

// Run relays the channel into the local bus until ctx is done.
func (r *RedisBridge) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed so early publishes are seen.
	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribe")
	}
	lg := zctx.From(ctx)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				lg.Warn("Bad notification on redis channel", zap.Error(err))
				continue
			}
			r.local.Publish(ctx, n)
		}
	}
}
