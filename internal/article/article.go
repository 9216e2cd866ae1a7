// Package article stores editorial content: news, guides and cooperative
// stories.
package article

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound  = apperr.NotFound("article not found")
	ErrSlugTaken = apperr.Conflict("slug already in use")
)

type Article struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Body        string     `json:"body"`
	CoverURL    string     `json:"cover_url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Request creates or partially updates an article. Published toggles
// publication; nil leaves it as is.
// swagger:model ArticleRequest
type Request struct {
	Title     string `json:"title"     example:"Cosecha 2026"`
	Slug      string `json:"slug"      example:"cosecha-2026"`
	Body      string `json:"body"`
	CoverURL  string `json:"cover_url"`
	Published *bool  `json:"published,omitempty"`
}

type Query struct {
	Q string
	// Drafts includes unpublished articles.
	Drafts bool
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, a *Article) error
	GetByID(ctx context.Context, id string) (*Article, error)
	GetBySlug(ctx context.Context, slug string) (*Article, error)
	List(ctx context.Context, q Query) ([]Article, error)
	Update(ctx context.Context, id string, r Request) (*Article, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, author_id, title, slug, body, cover_url, published_at, created_at, updated_at`

func scan(row pgx.CollectableRow) (Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.AuthorID, &a.Title, &a.Slug, &a.Body, &a.CoverURL,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *PGRepo) Create(ctx context.Context, a *Article) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO articles (author_id, title, slug, body, cover_url, published_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at
	`, a.AuthorID, a.Title, a.Slug, a.Body, a.CoverURL, a.PublishedAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

func (r *PGRepo) get(ctx context.Context, where string, arg string) (*Article, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT `+columns+` FROM articles WHERE `+where, arg)
	a, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Article, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *PGRepo) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	return r.get(ctx, `slug = $1`, slug)
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Article, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM articles
		WHERE ($1 = '' OR title ILIKE '%'||$1||'%' OR body ILIKE '%'||$1||'%')
		  AND ($2 OR published_at IS NOT NULL)
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $3 OFFSET $4
	`, strings.TrimSpace(q.Q), q.Drafts, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, id string, req Request) (*Article, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `
		UPDATE articles
		SET title        = COALESCE(NULLIF($2,''), title),
		    slug         = COALESCE(NULLIF($3,''), slug),
		    body         = COALESCE(NULLIF($4,''), body),
		    cover_url    = COALESCE(NULLIF($5,''), cover_url),
		    published_at = CASE
		                     WHEN $6::boolean IS NULL THEN published_at
		                     WHEN $6 THEN COALESCE(published_at, NOW())
		                     ELSE NULL
		                   END,
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING `+columns,
		id, req.Title, req.Slug, req.Body, req.CoverURL, req.Published)
	a, err := pgx.CollectExactlyOneRow(rows, scan)
	switch {
	case postgres.IsMissing(err):
		return nil, ErrNotFound
	case postgres.IsUniqueViolation(err):
		return nil, ErrSlugTaken
	case err != nil:
		return nil, err
	}
	return &a, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
