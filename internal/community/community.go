// Package community stores discussion spaces arranged in a hierarchy.
package community

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

var (
	ErrNotFound      = apperr.NotFound("community not found")
	ErrParentMissing = apperr.Invalid("parent community does not exist")
	ErrCycle         = apperr.Invalid("a community cannot be nested under itself or its descendants")
)

type Community struct {
	ID          string    `json:"id"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// swagger:model CommunityRequest
type Request struct {
	ParentID    *string `json:"parent_id,omitempty"`
	Name        string  `json:"name" example:"Caficultores"`
	Description string  `json:"description"`
}

// Node is a community with its sub-communities.
type Node struct {
	Community
	Children []Node `json:"children"`
}

// Tree nests flat communities under their parents. Communities whose parent
// is not in the list become roots. Siblings are ordered by name.
func Tree(list []Community) []Node {
	ids := make(map[string]bool, len(list))
	for _, c := range list {
		ids[c.ID] = true
	}
	children := make(map[string][]Community)
	var roots []Community
	for _, c := range list {
		if c.ParentID == nil || !ids[*c.ParentID] || *c.ParentID == c.ID {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var build func(level []Community, seen map[string]bool) []Node
	build = func(level []Community, seen map[string]bool) []Node {
		sort.Slice(level, func(i, j int) bool { return level[i].Name < level[j].Name })
		out := make([]Node, 0, len(level))
		for _, c := range level {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, Node{Community: c, Children: build(children[c.ID], seen)})
		}
		return out
	}
	return build(roots, make(map[string]bool, len(list)))
}

type Repository interface {
	Create(ctx context.Context, c *Community) error
	GetByID(ctx context.Context, id string) (*Community, error)
	List(ctx context.Context, parentID string, limit, offset int) ([]Community, error)
	All(ctx context.Context) ([]Community, error)
	Update(ctx context.Context, id string, r Request) (*Community, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, parent_id, name, description, created_by, created_at`

func scan(row pgx.CollectableRow) (Community, error) {
	var c Community
	err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.Description, &c.CreatedBy, &c.CreatedAt)
	return c, err
}

func (r *PGRepo) Create(ctx context.Context, c *Community) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO communities (parent_id, name, description, created_by) VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, c.ParentID, c.Name, c.Description, c.CreatedBy).Scan(&c.ID, &c.CreatedAt)
	if postgres.IsForeignKeyViolation(err) || postgres.IsInvalidInput(err) {
		return ErrParentMissing
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Community, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, `SELECT `+columns+` FROM communities WHERE id=$1`, id)
	c, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns one level of the hierarchy: the roots when parentID is empty.
func (r *PGRepo) List(ctx context.Context, parentID string, limit, offset int) ([]Community, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset = postgres.Clamp(limit, offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+` FROM communities
		WHERE ($1 = '' AND parent_id IS NULL) OR parent_id::text = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, parentID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) All(ctx context.Context) ([]Community, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM communities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, id string, req Request) (*Community, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	var out Community
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if req.ParentID != nil {
			// the new parent must not be id or live below it
			var cycle bool
			err := tx.QueryRow(ctx, `
				WITH RECURSIVE below AS (
					SELECT id FROM communities WHERE id = $1
					UNION
					SELECT c.id FROM communities c JOIN below b ON c.parent_id = b.id
				)
				SELECT EXISTS (SELECT 1 FROM below WHERE id::text = $2)
			`, id, *req.ParentID).Scan(&cycle)
			if err != nil {
				if postgres.IsInvalidInput(err) {
					return ErrNotFound
				}
				return err
			}
			if cycle {
				return ErrCycle
			}
		}
		rows, _ := tx.Query(ctx, `
			UPDATE communities
			SET name        = COALESCE(NULLIF($2,''), name),
			    description = COALESCE(NULLIF($3,''), description),
			    parent_id   = COALESCE($4::uuid, parent_id)
			WHERE id = $1
			RETURNING `+columns,
			id, req.Name, req.Description, req.ParentID)
		c, err := pgx.CollectExactlyOneRow(rows, scan)
		switch {
		case postgres.IsNoRows(err):
			return ErrNotFound
		case postgres.IsForeignKeyViolation(err), postgres.IsInvalidInput(err):
			return ErrParentMissing
		case err != nil:
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM communities WHERE id=$1`, id)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
