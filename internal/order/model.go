package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPaid || p == PaymentRefunded
}

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemFulfilled ItemStatus = "fulfilled"
	ItemCancelled ItemStatus = "cancelled"
)

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	Status          Status          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress json.RawMessage `json:"shipping_address" swaggertype:"object"`
	Notes           string          `json:"notes"`
	CourierID       *string         `json:"courier_id,omitempty"`
	TrackingNumber  string          `json:"tracking_number"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	AttributeID string          `json:"attribute_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Status      ItemStatus      `json:"status"`
}

// History is one row of the append-only status audit trail.
type History struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ChangedBy *string   `json:"changed_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Variant is the stock and price view of a product attribute used while
// placing an order.
type Variant struct {
	ID              string
	ProductID       string
	ProductName     string
	Name            string
	SKU             string
	Price           decimal.Decimal
	Stock           int
	Active          bool
	CooperativeID   string
	CooperativeName string
}

// Graph is the stored shape of an order with everything a response needs,
// nested the way it is joined.
type Graph struct {
	Order    Order
	Customer Customer
	Items    []GraphItem
}

type Customer struct {
	ID       string
	FullName string
	Email    string
}

type GraphItem struct {
	Item    Item
	Variant GraphVariant
}

type GraphVariant struct {
	ID      string
	Name    string
	SKU     string
	Product GraphProduct
}

type GraphProduct struct {
	ID          string
	Name        string
	Cooperative GraphCooperative
}

type GraphCooperative struct {
	ID      string
	Name    string
	OwnerID string
}
