package supplier

import "time"

// Supplier sells inputs (seeds, packaging, tools) to cooperatives.
type Supplier struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// swagger:model CreateSupplierRequest
type CreateRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name" example:"Agroinsumos del Valle"`
	Description string `json:"description"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

// swagger:model UpdateSupplierRequest
type UpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}
