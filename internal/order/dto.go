package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceItem is one requested line.
// swagger:model PlaceOrderItem
type PlaceItem struct {
	AttributeID string `json:"attribute_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity    int    `json:"quantity"     example:"2"`
}

// PlaceRequest payload of order placement. CartItemIDs names the cart rows
// converted by this order; when empty, the caller's cart rows for the ordered
// variants are removed.
// swagger:model PlaceOrderRequest
type PlaceRequest struct {
	Items           []PlaceItem     `json:"items"`
	CartItemIDs     []string        `json:"cart_item_ids,omitempty"`
	PaymentMethod   string          `json:"payment_method"   example:"cash_on_delivery"`
	ShippingAddress json.RawMessage `json:"shipping_address" swaggertype:"object"`
	Notes           string          `json:"notes"`
	CourierID       string          `json:"courier_id,omitempty"`
}

// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status Status `json:"status" example:"confirmed"`
	Note   string `json:"note"`
}

// swagger:model AssignCourierRequest
type AssignCourierRequest struct {
	CourierID      string `json:"courier_id"`
	TrackingNumber string `json:"tracking_number"`
}

// swagger:model PaymentRequest
type PaymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" example:"paid"`
}

// swagger:model CancelRequest
type CancelRequest struct {
	Reason string `json:"reason"`
}

type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VariantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

type CustomerRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// ItemResponse is an order line with its product, variant and cooperative
// flattened side by side.
type ItemResponse struct {
	ID          string          `json:"id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string"`
	LineTotal   decimal.Decimal `json:"line_total" swaggertype:"string"`
	Status      ItemStatus      `json:"status"`
	Product     Ref             `json:"product"`
	Variant     VariantRef      `json:"variant"`
	Cooperative Ref             `json:"cooperative"`
}

// OrderResponse is the client view of an order.
// swagger:model OrderResponse
type OrderResponse struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          Status          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"     swaggertype:"string"`
	ShippingFee     decimal.Decimal `json:"shipping_fee" swaggertype:"string"`
	Total           decimal.Decimal `json:"total"        swaggertype:"string"`
	ShippingAddress json.RawMessage `json:"shipping_address" swaggertype:"object"`
	Notes           string          `json:"notes"`
	CourierID       *string         `json:"courier_id,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Customer        CustomerRef     `json:"customer"`
	Items           []ItemResponse  `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Flatten reshapes the stored graph into the response, hoisting each item's
// product.cooperative to a sibling of product.
func Flatten(g *Graph) OrderResponse {
	o := g.Order
	out := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CourierID:       o.CourierID,
		TrackingNumber:  o.TrackingNumber,
		Customer:        CustomerRef{ID: g.Customer.ID, FullName: g.Customer.FullName, Email: g.Customer.Email},
		Items:           make([]ItemResponse, 0, len(g.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if len(out.ShippingAddress) == 0 {
		out.ShippingAddress = json.RawMessage(`{}`)
	}
	for _, gi := range g.Items {
		v := gi.Variant
		out.Items = append(out.Items, ItemResponse{
			ID:          gi.Item.ID,
			Quantity:    gi.Item.Quantity,
			UnitPrice:   gi.Item.UnitPrice,
			LineTotal:   gi.Item.UnitPrice.Mul(decimal.NewFromInt(int64(gi.Item.Quantity))),
			Status:      gi.Item.Status,
			Product:     Ref{ID: v.Product.ID, Name: v.Product.Name},
			Variant:     VariantRef{ID: v.ID, Name: v.Name, SKU: v.SKU},
			Cooperative: Ref{ID: v.Product.Cooperative.ID, Name: v.Product.Cooperative.Name},
		})
	}
	return out
}

// Summary is a row of an order listing.
type Summary struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total" swaggertype:"string"`
	ItemCount     int             `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
}
