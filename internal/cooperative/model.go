package cooperative

import "time"

// Cooperative is a seller organization owning products.
type Cooperative struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Region      string    `json:"region"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	LogoURL     string    `json:"logo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest payload of creation.
// swagger:model CreateCooperativeRequest
type CreateRequest struct {
	OwnerID     string `json:"owner_id"    example:"b2f5ff47-2b1e-4f22-8a96-5f3c1f2f2e7b"`
	Name        string `json:"name"        example:"Cooperativa Café Sierra"`
	Description string `json:"description"`
	Region      string `json:"region"      example:"Antioquia"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	LogoURL     string `json:"logo_url"`
}

// UpdateRequest payload of partial update; empty fields are left unchanged.
// swagger:model UpdateCooperativeRequest
type UpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	LogoURL     string `json:"logo_url"`
}
