package cart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/coopmarket/internal/apperr"
)

var (
	ErrNotFound       = apperr.NotFound("cart item not found")
	ErrUnknownVariant = apperr.Invalid("attribute not found or not for sale")
	ErrBadQuantity    = apperr.Invalid("quantity must be at least 1")
)

// StockError is returned when the cart would hold more units than the
// variant has in stock.
type StockError struct {
	AttributeID string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for attribute %s: requested %d, available %d",
		e.AttributeID, e.Requested, e.Available)
}

func (e *StockError) Kind() apperr.Kind { return apperr.KindInvalid }

// Item is a cart row joined with the variant it points to.
type Item struct {
	ID              string          `json:"id"`
	AttributeID     string          `json:"attribute_id"`
	Quantity        int             `json:"quantity"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	VariantName     string          `json:"variant_name"`
	SKU             string          `json:"sku"`
	UnitPrice       decimal.Decimal `json:"unit_price" swaggertype:"string"`
	LineTotal       decimal.Decimal `json:"line_total" swaggertype:"string"`
	Stock           int             `json:"stock"`
	CooperativeID   string          `json:"cooperative_id"`
	CooperativeName string          `json:"cooperative_name"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Cart is the caller's current cart.
// swagger:model Cart
type Cart struct {
	Items    []Item          `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal" swaggertype:"string"`
}

// NewCart computes line totals, the unit count and the subtotal.
func NewCart(items []Item) Cart {
	c := Cart{Items: make([]Item, 0, len(items)), Subtotal: decimal.Zero}
	for _, it := range items {
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		c.Subtotal = c.Subtotal.Add(it.LineTotal)
		c.Count += it.Quantity
		c.Items = append(c.Items, it)
	}
	return c
}

// swagger:model AddCartItemRequest
type AddRequest struct {
	AttributeID string `json:"attribute_id" example:"0b8f1c1e-93a8-4c53-9f3a-6d1b1f4f6a10"`
	Quantity    int    `json:"quantity"     example:"2"`
}

// swagger:model UpdateCartItemRequest
type UpdateRequest struct {
	Quantity int `json:"quantity" example:"3"`
}
