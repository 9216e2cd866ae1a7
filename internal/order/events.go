package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// Envelope wraps every order event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	AttributeID string          `json:"attribute_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type PlacedPayload struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Items       []PlacedItem    `json:"items"`
}

type StatusChangedPayload struct {
	OrderID   string  `json:"order_id"`
	From      Status  `json:"from"`
	To        Status  `json:"to"`
	Note      string  `json:"note,omitempty"`
	ChangedBy *string `json:"changed_by,omitempty"`
}

// Events receives order events keyed by order id. Publishing is best effort
// and must not block placement.
type Events interface {
	Publish(ctx context.Context, key string, e Envelope)
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, string, Envelope) {}

func newEnvelope(typ, orderID string, at time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     typ,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      "marketplace-api",
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}
