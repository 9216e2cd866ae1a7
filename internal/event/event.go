// Package event stores fairs, workshops and other dated happenings published
// by cooperatives or the platform.
package event

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound  = apperr.NotFound("event not found")
	ErrBadWindow = apperr.Invalid("ends_at must not be before starts_at")
)

type Event struct {
	ID            string     `json:"id"`
	CooperativeID *string    `json:"cooperative_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Location      string     `json:"location"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	ImageURL      string     `json:"image_url"`
	CreatedAt     time.Time  `json:"created_at"`
}

// swagger:model EventRequest
type Request struct {
	CooperativeID *string    `json:"cooperative_id,omitempty"`
	Title         string     `json:"title"     example:"Feria del café"`
	Description   string     `json:"description"`
	Location      string     `json:"location"  example:"Plaza principal, Salento"`
	StartsAt      *time.Time `json:"starts_at" example:"2026-11-02T09:00:00Z"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	ImageURL      string     `json:"image_url"`
}

type Query struct {
	CooperativeID string
	// Upcoming keeps events that have not ended yet.
	Upcoming bool
	Limit    int
	Offset   int
}

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, q Query) ([]Event, error)
	Update(ctx context.Context, id string, r Request) (*Event, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, cooperative_id, title, description, location, starts_at, ends_at, image_url, created_at`

func scan(row pgx.CollectableRow) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.CooperativeID, &e.Title, &e.Description, &e.Location,
		&e.StartsAt, &e.EndsAt, &e.ImageURL, &e.CreatedAt)
	return e, err
}

func (r *PGRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO events (cooperative_id, title, description, location, starts_at, ends_at, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, e.CooperativeID, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.ImageURL,
	).Scan(&e.ID, &e.CreatedAt)
	if postgres.IsCheckViolation(err) {
		return ErrBadWindow
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT `+columns+` FROM events WHERE id=$1`, id)
	e, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM events
		WHERE ($1 = '' OR cooperative_id::text = $1)
		  AND (NOT $2 OR COALESCE(ends_at, starts_at) >= NOW())
		ORDER BY starts_at
		LIMIT $3 OFFSET $4
	`, q.CooperativeID, q.Upcoming, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, id string, req Request) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `
		UPDATE events
		SET title       = COALESCE(NULLIF($2,''), title),
		    description = COALESCE(NULLIF($3,''), description),
		    location    = COALESCE(NULLIF($4,''), location),
		    starts_at   = COALESCE($5, starts_at),
		    ends_at     = COALESCE($6, ends_at),
		    image_url   = COALESCE(NULLIF($7,''), image_url)
		WHERE id = $1
		RETURNING `+columns,
		id, req.Title, req.Description, req.Location, req.StartsAt, req.EndsAt, req.ImageURL)
	e, err := pgx.CollectExactlyOneRow(rows, scan)
	switch {
	case postgres.IsMissing(err):
		return nil, ErrNotFound
	case postgres.IsCheckViolation(err):
		return nil, ErrBadWindow
	case err != nil:
		return nil, err
	}
	return &e, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
