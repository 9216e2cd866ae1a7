package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListFilter scopes an order listing. Empty fields do not filter.
type ListFilter struct {
	UserID string
	// CooperativeOwnerID keeps orders with at least one item from a
	// cooperative owned by this user.
	CooperativeOwnerID string
	Status             Status
	Limit              int
	Offset             int
}

// Store is the persistence the order service needs.
type Store interface {
	Variants(ctx context.Context, ids []string) (map[string]Variant, error)
	CourierFee(ctx context.Context, courierID string) (decimal.Decimal, error)
	CountOrders(ctx context.Context, from, to time.Time) (int, error)
	// InTx runs fn in one transaction; an error from fn rolls back every
	// write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	DeleteCartItems(ctx context.Context, userID string, cartItemIDs, attributeIDs []string) (int64, error)
	AppendHistory(ctx context.Context, h *History) error
	Graph(ctx context.Context, id string) (*Graph, error)
	List(ctx context.Context, f ListFilter) ([]Summary, error)
	History(ctx context.Context, orderID string) ([]History, error)
	SetCourier(ctx context.Context, id, courierID, tracking string) error
	SetPayment(ctx context.Context, id string, p PaymentStatus) error
}

// Tx is the transactional part of Store.
type Tx interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, it *Item) error
	// DecrementStock subtracts qty only when at least qty is in stock. When it
	// does not, ok is false and available is the current stock.
	DecrementStock(ctx context.Context, attributeID string, qty int) (ok bool, available int, err error)
	IncrementStock(ctx context.Context, attributeID string, qty int) error
	LockOrder(ctx context.Context, id string) (*Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)
	SetStatus(ctx context.Context, id string, s Status) error
	SetItemsStatus(ctx context.Context, orderID string, s ItemStatus) error
	AppendHistory(ctx context.Context, h *History) error
}
