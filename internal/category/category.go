// Package category stores the product taxonomy.
package category

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound = apperr.NotFound("category not found")
	ErrInUse    = apperr.Conflict("category is still referenced")
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// swagger:model CategoryRequest
type Request struct {
	Name        string `json:"name" example:"Café"`
	Slug        string `json:"slug" example:"cafe"`
	Description string `json:"description"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters into "-".
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-"), "-")
}

type Repository interface {
	Create(ctx context.Context, c *Category) error
	GetByID(ctx context.Context, id string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func scan(row pgx.CollectableRow) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	return c, err
}

func (r *PGRepo) Create(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO categories (name, slug, description) VALUES ($1,$2,$3)
		RETURNING id, created_at
	`, c.Name, c.Slug, c.Description).Scan(&c.ID, &c.CreatedAt)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT id, name, slug, description, created_at FROM categories WHERE id=$1`, id)
	c, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepo) List(ctx context.Context) ([]Category, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT id, name, slug, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `
		UPDATE categories
		SET name        = COALESCE(NULLIF($2,''), name),
		    slug        = COALESCE(NULLIF($3,''), slug),
		    description = COALESCE(NULLIF($4,''), description)
		WHERE id = $1
		RETURNING id, name, slug, description, created_at
	`, c.ID, c.Name, c.Slug, c.Description)
	out, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return ErrNotFound
		}
		return err
	}
	*c = out
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
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
