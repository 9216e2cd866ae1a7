package comment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/postgres"
)

type Repository interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id string) (*Comment, error)
	// ListByPost returns every comment of the post, flat, with viewerID's
	// votes filled in.
	ListByPost(ctx context.Context, postID, viewerID string) ([]Comment, error)
	Delete(ctx context.Context, id string) (bool, error)
	Vote(ctx context.Context, commentID, userID string, value int) (*VoteResult, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectSQL = `
	SELECT c.id, c.post_id, c.parent_id, c.author_id, u.full_name, c.body,
	       COALESCE((SELECT SUM(v.value) FROM comment_votes v WHERE v.comment_id = c.id), 0),
	       COALESCE((SELECT v.value FROM comment_votes v WHERE v.comment_id = c.id AND v.user_id::text = $2), 0),
	       c.created_at
	FROM comments c JOIN users u ON u.id = c.author_id`

func scan(row pgx.CollectableRow) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.PostID, &c.ParentID, &c.AuthorID, &c.AuthorName, &c.Body,
		&c.Score, &c.MyVote, &c.CreatedAt)
	return c, err
}

func (r *PGRepo) Create(ctx context.Context, c *Comment) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	// A reply is only inserted when its parent sits in the same post.
	err := r.db.QueryRow(ctx, `
		INSERT INTO comments (post_id, parent_id, author_id, body)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text
		WHERE $2::uuid IS NULL OR EXISTS (SELECT 1 FROM comments WHERE id = $2::uuid AND post_id = $1::uuid)
		RETURNING id, created_at
	`, c.PostID, c.ParentID, c.AuthorID, c.Body).Scan(&c.ID, &c.CreatedAt)
	switch {
	case postgres.IsNoRows(err):
		return ErrBadParent
	case postgres.IsForeignKeyViolation(err), postgres.IsInvalidInput(err):
		return ErrPostNotFound
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, selectSQL+` WHERE c.id = $1`, id, "")
	c, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepo) ListByPost(ctx context.Context, postID, viewerID string) ([]Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectSQL+` WHERE c.post_id::text = $1 ORDER BY c.created_at`, postID, viewerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// Vote records userID's vote. Zero clears a previous vote.
func (r *PGRepo) Vote(ctx context.Context, commentID, userID string, value int) (*VoteResult, error) {
	if value < -1 || value > 1 {
		return nil, ErrBadVote
	}
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	res := &VoteResult{CommentID: commentID, MyVote: value}
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		if value == 0 {
			_, err = tx.Exec(ctx, `DELETE FROM comment_votes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO comment_votes (comment_id, user_id, value) VALUES ($1,$2,$3)
				ON CONFLICT (comment_id, user_id) DO UPDATE SET value = EXCLUDED.value
			`, commentID, userID, value)
		}
		if err != nil {
			if postgres.IsForeignKeyViolation(err) || postgres.IsInvalidInput(err) {
				return ErrNotFound
			}
			return err
		}
		return tx.QueryRow(ctx, `SELECT COALESCE(SUM(value), 0) FROM comment_votes WHERE comment_id = $1`,
			commentID).Scan(&res.Score)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
