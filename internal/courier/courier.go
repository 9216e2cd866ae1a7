// Package courier stores the delivery partners orders can be assigned to.
package courier

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
	ErrNotFound = apperr.NotFound("courier not found")
	ErrInUse    = apperr.Conflict("courier is still assigned to orders")
)

type Courier struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	ServiceArea string          `json:"service_area"`
	BaseFee     decimal.Decimal `json:"base_fee" swaggertype:"string"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// swagger:model CourierRequest
type Request struct {
	Name        string           `json:"name"         example:"Envíos Rápidos"`
	Phone       string           `json:"phone"`
	ServiceArea string           `json:"service_area" example:"Eje Cafetero"`
	BaseFee     *decimal.Decimal `json:"base_fee,omitempty" example:"8.00" swaggertype:"string"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, c *Courier) error
	GetByID(ctx context.Context, id string) (*Courier, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]Courier, error)
	Update(ctx context.Context, id string, r Request) (*Courier, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, name, phone, service_area, base_fee, is_active, created_at, updated_at`

func scan(row pgx.CollectableRow) (Courier, error) {
	var c Courier
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.ServiceArea, &c.BaseFee, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *PGRepo) Create(ctx context.Context, c *Courier) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO couriers (name, phone, service_area, base_fee, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at
	`, c.Name, c.Phone, c.ServiceArea, c.BaseFee, c.IsActive).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Courier, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT `+columns+` FROM couriers WHERE id=$1`, id)
	c, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepo) List(ctx context.Context, activeOnly bool, limit, offset int) ([]Courier, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset = postgres.Clamp(limit, offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+` FROM couriers
		WHERE (NOT $1 OR is_active)
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, activeOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, id string, req Request) (*Courier, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `
		UPDATE couriers
		SET name         = COALESCE(NULLIF($2,''), name),
		    phone        = COALESCE(NULLIF($3,''), phone),
		    service_area = COALESCE(NULLIF($4,''), service_area),
		    base_fee     = COALESCE($5, base_fee),
		    is_active    = COALESCE($6, is_active),
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING `+columns,
		id, req.Name, req.Phone, req.ServiceArea, req.BaseFee, req.IsActive)
	c, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM couriers WHERE id=$1`, id)
	if err != nil {
		switch {
		case postgres.IsInvalidInput(err):
			return false, nil
		case postgres.IsForeignKeyViolation(err):
			return false, ErrInUse
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
