// Package cooperative stores seller organizations.
package cooperative

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound = apperr.NotFound("cooperative not found")
	ErrInUse    = apperr.Conflict("cooperative has products that were ordered; it cannot be deleted")
)

type Query struct {
	Q       string
	Region  string
	OwnerID string
	Limit   int
	Offset  int
}

type Repository interface {
	Create(ctx context.Context, c *Cooperative) error
	GetByID(ctx context.Context, id string) (*Cooperative, error)
	List(ctx context.Context, q Query) ([]Cooperative, error)
	Update(ctx context.Context, c *Cooperative) error
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, owner_id, name, description, region, address, phone, email, logo_url, created_at, updated_at`

func scan(row pgx.CollectableRow) (Cooperative, error) {
	var c Cooperative
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Region, &c.Address,
		&c.Phone, &c.Email, &c.LogoURL, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Insert creates c using db, which may be a transaction. It is shared with
// registration, which creates the owner and the cooperative together.
func Insert(ctx context.Context, db postgres.DBTX, c *Cooperative) error {
	return db.QueryRow(ctx, `
		INSERT INTO cooperatives (owner_id, name, description, region, address, phone, email, logo_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at
	`, c.OwnerID, c.Name, c.Description, c.Region, c.Address, c.Phone, c.Email, c.LogoURL,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PGRepo) Create(ctx context.Context, c *Cooperative) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()
	return Insert(ctx, r.db, c)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Cooperative, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT `+columns+` FROM cooperatives WHERE id=$1`, id)
	c, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Cooperative, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM cooperatives
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND ($2 = '' OR region = $2)
		  AND ($3 = '' OR owner_id::text = $3)
		ORDER BY name
		LIMIT $4 OFFSET $5
	`, strings.TrimSpace(q.Q), q.Region, q.OwnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, c *Cooperative) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		UPDATE cooperatives
		SET name        = COALESCE(NULLIF($2,''), name),
		    description = COALESCE(NULLIF($3,''), description),
		    region      = COALESCE(NULLIF($4,''), region),
		    address     = COALESCE(NULLIF($5,''), address),
		    phone       = COALESCE(NULLIF($6,''), phone),
		    email       = COALESCE(NULLIF($7,''), email),
		    logo_url    = COALESCE(NULLIF($8,''), logo_url),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING `+columns,
		c.ID, c.Name, c.Description, c.Region, c.Address, c.Phone, c.Email, c.LogoURL,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Region, &c.Address,
		&c.Phone, &c.Email, &c.LogoURL, &c.CreatedAt, &c.UpdatedAt)
	if postgres.IsMissing(err) {
		return ErrNotFound
	}
	return err
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM cooperatives WHERE id=$1`, id)
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
