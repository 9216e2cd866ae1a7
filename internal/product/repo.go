// Package product provides the repository interface and PostgreSQL implementation for managing products.
package product

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/attribute"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var ErrNotFound = apperr.NotFound("product not found")

type Query struct {
	Q             string
	CategoryID    string
	CooperativeID string
	// IncludeInactive lists hidden products too; only owners and admins ask.
	IncludeInactive bool
	Limit           int
	Offset          int
}

type Repository interface {
	Create(ctx context.Context, p *Product, variants []attribute.CreateRequest) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	Update(ctx context.Context, p *Product, isActive *bool) error
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectProduct = `
	SELECT p.id, p.cooperative_id, p.category_id, p.name, p.description, p.image_urls,
	       p.is_active, p.created_at, p.updated_at,
	       (SELECT MIN(a.price) FROM product_attributes a WHERE a.product_id = p.id),
	       c.owner_id
	FROM products p
	JOIN cooperatives c ON c.id = p.cooperative_id`

func scan(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CooperativeID, &p.CategoryID, &p.Name, &p.Description, &p.ImageURLs,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.PriceFrom, &p.OwnerID)
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	return p, err
}

// Create inserts the product and its initial variants atomically.
func (r *PGRepo) Create(ctx context.Context, p *Product, variants []attribute.CreateRequest) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO products (cooperative_id, category_id, name, description, image_urls)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id, is_active, created_at, updated_at
		`, p.CooperativeID, p.CategoryID, p.Name, p.Description, p.ImageURLs,
		).Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		for _, v := range variants {
			a := attribute.Attribute{ProductID: p.ID, Name: v.Name, SKU: v.SKU, Price: v.Price, Stock: v.Stock}
			if err := tx.QueryRow(ctx, `
				INSERT INTO product_attributes (product_id, name, sku, price, stock)
				VALUES ($1,$2,$3,$4,$5)
				RETURNING id, created_at, updated_at
			`, a.ProductID, a.Name, a.SKU, a.Price, a.Stock).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
				return err
			}
			p.Variants = append(p.Variants, a)
			if p.PriceFrom == nil || a.Price.LessThan(*p.PriceFrom) {
				price := a.Price
				p.PriceFrom = &price
			}
		}
		return nil
	})
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, selectProduct+` WHERE p.id = $1`, id)
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
	rows, err := r.db.Query(ctx, selectProduct+`
		WHERE ($1 = '' OR p.name ILIKE '%'||$1||'%' OR p.description ILIKE '%'||$1||'%')
		  AND ($2 = '' OR p.category_id::text = $2)
		  AND ($3 = '' OR p.cooperative_id::text = $3)
		  AND ($4 OR p.is_active)
		ORDER BY p.created_at DESC
		LIMIT $5 OFFSET $6
	`, strings.TrimSpace(q.Q), q.CategoryID, q.CooperativeID, q.IncludeInactive, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, p *Product, isActive *bool) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE products
		SET category_id = COALESCE($2, category_id),
		    name        = COALESCE(NULLIF($3,''), name),
		    description = COALESCE(NULLIF($4,''), description),
		    image_urls  = COALESCE($5, image_urls),
		    is_active   = COALESCE($6, is_active),
		    updated_at  = NOW()
		WHERE id = $1
	`, p.ID, p.CategoryID, p.Name, p.Description, p.ImageURLs, isActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		switch {
		case postgres.IsInvalidInput(err):
			return false, nil
		case postgres.IsForeignKeyViolation(err):
			return false, apperr.Conflict("product has orders; deactivate it instead")
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
