package user

import (
	"time"

	"github.com/MikeMC777/coopmarket/internal/auth"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusActive || s == StatusSuspended
}

type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	FullName        string     `json:"full_name"`
	Phone           string     `json:"phone"`
	Role            auth.Role  `json:"role"`
	Status          Status     `json:"status"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Profile is the organization created together with a cooperative or
// supplier account.
type Profile struct {
	Name        string `json:"name"        example:"Cooperativa Café Sierra"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
}

// RegisterRequest payload of registration.
// swagger:model RegisterRequest
type RegisterRequest struct {
	Email    string    `json:"email"     example:"ana@example.com"`
	Password string    `json:"password"  example:"s3cret-pass"`
	FullName string    `json:"full_name" example:"Ana Gómez"`
	Phone    string    `json:"phone"`
	Role     auth.Role `json:"role"      example:"customer"`
	Profile  *Profile  `json:"profile,omitempty"`
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

// LoginResponse carries the access token.
// swagger:model LoginResponse
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// swagger:model UpdateUserRequest
type UpdateRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Password string `json:"password,omitempty"`
}

type Query struct {
	Q      string
	Role   auth.Role
	Status Status
	Limit  int
	Offset int
}
