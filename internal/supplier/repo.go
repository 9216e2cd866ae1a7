// Package supplier stores input suppliers.
package supplier

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound = apperr.NotFound("supplier not found")
	ErrInUse    = apperr.Conflict("supplier is still referenced")
)

type Query struct {
	Q       string
	OwnerID string
	Limit   int
	Offset  int
}

type Repository interface {
	Create(ctx context.Context, s *Supplier) error
	GetByID(ctx context.Context, id string) (*Supplier, error)
	List(ctx context.Context, q Query) ([]Supplier, error)
	Update(ctx context.Context, s *Supplier) error
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, owner_id, name, description, phone, email, address, created_at, updated_at`

func scan(row pgx.CollectableRow) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Phone, &s.Email,
		&s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Insert creates s using db, which may be a registration transaction.
func Insert(ctx context.Context, db postgres.DBTX, s *Supplier) error {
	return db.QueryRow(ctx, `
		INSERT INTO suppliers (owner_id, name, description, phone, email, address)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at
	`, s.OwnerID, s.Name, s.Description, s.Phone, s.Email, s.Address,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *PGRepo) Create(ctx context.Context, s *Supplier) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()
	return Insert(ctx, r.db, s)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Supplier, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT `+columns+` FROM suppliers WHERE id=$1`, id)
	s, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Supplier, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM suppliers
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%')
		  AND ($2 = '' OR owner_id::text = $2)
		ORDER BY name
		LIMIT $3 OFFSET $4
	`, strings.TrimSpace(q.Q), q.OwnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, s *Supplier) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `
		UPDATE suppliers
		SET name        = COALESCE(NULLIF($2,''), name),
		    description = COALESCE(NULLIF($3,''), description),
		    phone       = COALESCE(NULLIF($4,''), phone),
		    email       = COALESCE(NULLIF($5,''), email),
		    address     = COALESCE(NULLIF($6,''), address),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING `+columns,
		s.ID, s.Name, s.Description, s.Phone, s.Email, s.Address)
	out, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return ErrNotFound
		}
		return err
	}
	*s = out
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
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
