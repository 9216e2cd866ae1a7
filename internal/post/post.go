// Package post stores the threads opened inside communities.
package post

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound          = apperr.NotFound("post not found")
	ErrCommunityNotFound = apperr.Invalid("community does not exist")
)

type Post struct {
	ID           string    `json:"id"`
	CommunityID  string    `json:"community_id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// swagger:model PostRequest
type Request struct {
	CommunityID string `json:"community_id,omitempty"`
	Title       string `json:"title" example:"¿Cuándo empieza la cosecha?"`
	Body        string `json:"body"`
}

type Repository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	ListByCommunity(ctx context.Context, communityID string, limit, offset int) ([]Post, error)
	Update(ctx context.Context, id, title, body string) (*Post, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectSQL = `
	SELECT p.id, p.community_id, p.author_id, u.full_name, p.title, p.body,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	       p.created_at, p.updated_at
	FROM posts p JOIN users u ON u.id = p.author_id`

func scan(row pgx.CollectableRow) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.CommunityID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Body,
		&p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PGRepo) Create(ctx context.Context, p *Post) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO posts (community_id, author_id, title, body) VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at
	`, p.CommunityID, p.AuthorID, p.Title, p.Body).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if postgres.IsForeignKeyViolation(err) || postgres.IsInvalidInput(err) {
		return ErrCommunityNotFound
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, selectSQL+` WHERE p.id = $1`, id)
	p, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) ListByCommunity(ctx context.Context, communityID string, limit, offset int) ([]Post, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset = postgres.Clamp(limit, offset)
	rows, err := r.db.Query(ctx, selectSQL+`
		WHERE p.community_id::text = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, communityID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, id, title, body string) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE posts
		SET title      = COALESCE(NULLIF($2,''), title),
		    body       = COALESCE(NULLIF($3,''), body),
		    updated_at = NOW()
		WHERE id = $1
	`, id, title, body)
	if err != nil && !postgres.IsInvalidInput(err) {
		return nil, err
	}
	if err != nil || cmd.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
