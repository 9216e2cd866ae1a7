package product

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/coopmarket/internal/attribute"
)

type Product struct {
	ID            string    `json:"id"`
	CooperativeID string    `json:"cooperative_id"`
	CategoryID    *string   `json:"category_id,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ImageURLs     []string  `json:"image_urls"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// PriceFrom is the cheapest variant price; nil when there are no variants.
	PriceFrom *decimal.Decimal `json:"price_from,omitempty" swaggertype:"string"`
	// Variants is only filled on single-product reads.
	Variants []attribute.Attribute `json:"variants,omitempty"`

	// OwnerID is the user owning the cooperative.
	OwnerID string `json:"-"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	CooperativeID string                    `json:"cooperative_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	CategoryID    string                    `json:"category_id"`
	Name          string                    `json:"name"        example:"Café de origen"`
	Description   string                    `json:"description" example:"Tostión media"`
	ImageURLs     []string                  `json:"image_urls"`
	Variants      []attribute.CreateRequest `json:"variants"`
}

// UpdateProductRequest payload of partial update.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	CategoryID  string   `json:"category_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"image_urls"`
	IsActive    *bool    `json:"is_active,omitempty"`
}
