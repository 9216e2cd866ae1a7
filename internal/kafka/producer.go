// Package kafka ships order events to a Kafka topic without holding up the
// request that produced them.
package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MikeMC777/coopmarket/internal/order"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them from one goroutine.
// When the queue is full new events are dropped and logged.
type Producer struct {
	w     writer
	lg    *zap.Logger
	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ order.Events = (*Producer)(nil)

func NewProducer(brokers []string, topic string, buf int, lg *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, buf, lg)
}

func newProducer(w writer, buf int, lg *zap.Logger) *Producer {
	if buf < 1 {
		buf = 256
	}
	return &Producer{w: w, lg: lg, inbox: make(chan kafka.Message, buf), done: make(chan struct{})}
}

// Start runs the write loop. Call Close to flush and stop it.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				p.lg.Warn("Kafka write failed", zap.String("key", string(m.Key)), zap.Error(err))
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			p.lg.Warn("Kafka writer close", zap.Error(err))
		}
	}()
}

// Publish enqueues e keyed by key, so events of one order stay in one
// partition and in order.
func (p *Producer) Publish(ctx context.Context, key string, e order.Envelope) {
	value, err := json.Marshal(e)
	if err != nil {
		zctx.From(ctx).Warn("Encode order event", zap.Error(err))
		return
	}
	m := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.inbox <- m:
	default:
		zctx.From(ctx).Warn("Order event dropped, queue full",
			zap.String("event_type", e.EventType), zap.String("key", key))
	}
}

// Close stops accepting events, flushes the queue and waits for the writer.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}
