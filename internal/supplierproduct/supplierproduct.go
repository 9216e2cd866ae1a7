// Package supplierproduct stores the wholesale catalog suppliers offer to
// cooperatives.
package supplierproduct

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var ErrNotFound = apperr.NotFound("supplier product not found")

type Product struct {
	ID          string          `json:"id"`
	SupplierID  string          `json:"supplier_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	MinOrderQty int             `json:"min_order_qty"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// OwnerID is the user owning the supplier.
	OwnerID string `json:"-"`
}

// swagger:model CreateSupplierProductRequest
type CreateRequest struct {
	SupplierID  string          `json:"supplier_id"`
	Name        string          `json:"name"          example:"Abono orgánico"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"          example:"kg"`
	Price       decimal.Decimal `json:"price"         example:"3.20" swaggertype:"string"`
	MinOrderQty int             `json:"min_order_qty" example:"50"`
	ImageURL    string          `json:"image_url"`
}

// swagger:model UpdateSupplierProductRequest
type UpdateRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Unit        string           `json:"unit"`
	Price       *decimal.Decimal `json:"price,omitempty" swaggertype:"string"`
	MinOrderQty *int             `json:"min_order_qty,omitempty"`
	ImageURL    string           `json:"image_url"`
}

type Query struct {
	Q          string
	SupplierID string
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	Update(ctx context.Context, p *Product, price *decimal.Decimal, minQty *int) error
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectSQL = `
	SELECT sp.id, sp.supplier_id, sp.name, sp.description, sp.unit, sp.price, sp.min_order_qty,
	       sp.image_url, sp.created_at, sp.updated_at, s.owner_id
	FROM supplier_products sp
	JOIN suppliers s ON s.id = sp.supplier_id`

func scan(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Name, &p.Description, &p.Unit, &p.Price, &p.MinOrderQty,
		&p.ImageURL, &p.CreatedAt, &p.UpdatedAt, &p.OwnerID)
	return p, err
}

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	if p.Unit == "" {
		p.Unit = "pcs"
	}
	if p.MinOrderQty < 1 {
		p.MinOrderQty = 1
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO supplier_products (supplier_id, name, description, unit, price, min_order_qty, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at
	`, p.SupplierID, p.Name, p.Description, p.Unit, p.Price, p.MinOrderQty, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, selectSQL+` WHERE sp.id = $1`, id)
	p, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, selectSQL+`
		WHERE ($1 = '' OR sp.name ILIKE '%'||$1||'%')
		  AND ($2 = '' OR sp.supplier_id::text = $2)
		ORDER BY sp.name
		LIMIT $3 OFFSET $4
	`, strings.TrimSpace(q.Q), q.SupplierID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, p *Product, price *decimal.Decimal, minQty *int) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE supplier_products
		SET name          = COALESCE(NULLIF($2,''), name),
		    description   = COALESCE(NULLIF($3,''), description),
		    unit          = COALESCE(NULLIF($4,''), unit),
		    price         = COALESCE($5, price),
		    min_order_qty = COALESCE($6, min_order_qty),
		    image_url     = COALESCE(NULLIF($7,''), image_url),
		    updated_at    = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Unit, price, minQty, p.ImageURL)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return ErrNotFound
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM supplier_products WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
