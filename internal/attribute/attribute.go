// Package attribute stores product variants, the unit of inventory.
package attribute

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound      = apperr.NotFound("attribute not found")
	ErrNegativeStock = apperr.Invalid("stock cannot go below zero")
)

// Attribute is a purchasable variant of a product with its own price and
// stock counter.
type Attribute struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// OwnerID is the user owning the product's cooperative.
	OwnerID string `json:"-"`
}

// swagger:model CreateAttributeRequest
type CreateRequest struct {
	Name  string          `json:"name"  example:"500 g"`
	SKU   string          `json:"sku"   example:"CAF-500"`
	Price decimal.Decimal `json:"price" example:"18.50" swaggertype:"string"`
	Stock int             `json:"stock" example:"10"`
}

// swagger:model UpdateAttributeRequest
type UpdateRequest struct {
	Name  string           `json:"name"`
	SKU   string           `json:"sku"`
	Price *decimal.Decimal `json:"price,omitempty" swaggertype:"string"`
	Stock *int             `json:"stock,omitempty"`
}

// swagger:model StockDeltaRequest
type StockDeltaRequest struct {
	Delta int `json:"delta" example:"-2"`
}

type Repository interface {
	Create(ctx context.Context, a *Attribute) error
	GetByID(ctx context.Context, id string) (*Attribute, error)
	ListByProduct(ctx context.Context, productID string) ([]Attribute, error)
	Update(ctx context.Context, a *Attribute, price *decimal.Decimal, stock *int) error
	AdjustStock(ctx context.Context, id string, delta int) (*Attribute, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectAttr = `
	SELECT a.id, a.product_id, a.name, a.sku, a.price, a.stock, a.created_at, a.updated_at, c.owner_id
	FROM product_attributes a
	JOIN products p ON p.id = a.product_id
	JOIN cooperatives c ON c.id = p.cooperative_id`

func scan(row pgx.CollectableRow) (Attribute, error) {
	var a Attribute
	err := row.Scan(&a.ID, &a.ProductID, &a.Name, &a.SKU, &a.Price, &a.Stock,
		&a.CreatedAt, &a.UpdatedAt, &a.OwnerID)
	return a, err
}

func (r *PGRepo) Create(ctx context.Context, a *Attribute) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO product_attributes (product_id, name, sku, price, stock)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at
	`, a.ProductID, a.Name, a.SKU, a.Price, a.Stock).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Attribute, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, selectAttr+` WHERE a.id = $1`, id)
	a, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PGRepo) ListByProduct(ctx context.Context, productID string) ([]Attribute, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectAttr+` WHERE a.product_id = $1 ORDER BY a.price, a.name`, productID)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return nil, nil
		}
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, a *Attribute, price *decimal.Decimal, stock *int) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE product_attributes
		SET name       = COALESCE(NULLIF($2,''), name),
		    sku        = COALESCE(NULLIF($3,''), sku),
		    price      = COALESCE($4, price),
		    stock      = COALESCE($5, stock),
		    updated_at = NOW()
		WHERE id = $1
	`, a.ID, a.Name, a.SKU, price, stock)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return ErrNegativeStock
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock adds delta to the stock counter; the CHECK constraint refuses
// results below zero.
func (r *PGRepo) AdjustStock(ctx context.Context, id string, delta int) (*Attribute, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE product_attributes SET stock = stock + $2, updated_at = NOW() WHERE id = $1
	`, id, delta)
	if err != nil {
		switch {
		case postgres.IsCheckViolation(err):
			return nil, ErrNegativeStock
		case postgres.IsInvalidInput(err):
			return nil, ErrNotFound
		}
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM product_attributes WHERE id=$1`, id)
	if err != nil {
		switch {
		case postgres.IsInvalidInput(err):
			return false, nil
		case postgres.IsForeignKeyViolation(err):
			return false, apperr.Conflict("attribute is referenced by orders")
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
