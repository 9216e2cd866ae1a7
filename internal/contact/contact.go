// Package contact stores messages sent through the public contact form.
package contact

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var ErrNotFound = apperr.NotFound("contact message not found")

type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// swagger:model ContactRequest
type Request struct {
	Name    string `json:"name"    example:"Laura"`
	Email   string `json:"email"   example:"laura@example.com"`
	Subject string `json:"subject" example:"Pedidos al por mayor"`
	Message string `json:"message"`
}

// Normalize trims the request and reports the first invalid field.
func (r *Request) Normalize() (field, reason string, ok bool) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Subject = strings.TrimSpace(r.Subject)
	r.Message = strings.TrimSpace(r.Message)
	switch {
	case r.Name == "":
		return "name", "is required", false
	case r.Email == "":
		return "email", "is required", false
	case r.Message == "":
		return "message", "is required", false
	case len(r.Message) > 5000:
		return "message", "must be at most 5000 characters", false
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return "email", "is not a valid address", false
	}
	return "", "", true
}

type Repository interface {
	Create(ctx context.Context, m *Message) error
	List(ctx context.Context, unreadOnly bool, limit, offset int) ([]Message, error)
	MarkRead(ctx context.Context, id string) (*Message, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, name, email, subject, message, is_read, created_at`

func scan(row pgx.CollectableRow) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.IsRead, &m.CreatedAt)
	return m, err
}

func (r *PGRepo) Create(ctx context.Context, m *Message) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO contacts (name, email, subject, message) VALUES ($1,$2,$3,$4)
		RETURNING id, is_read, created_at
	`, m.Name, m.Email, m.Subject, m.Message).Scan(&m.ID, &m.IsRead, &m.CreatedAt)
}

func (r *PGRepo) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset = postgres.Clamp(limit, offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+` FROM contacts
		WHERE (NOT $1 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) MarkRead(ctx context.Context, id string) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `UPDATE contacts SET is_read = TRUE WHERE id = $1 RETURNING `+columns, id)
	m, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
