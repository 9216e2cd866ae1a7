package user

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/postgres"
	"github.com/MikeMC777/coopmarket/internal/supplier"
)

var (
	ErrNotFound     = apperr.NotFound("user not found")
	ErrAlreadyExist = apperr.Conflict("email already registered")
	ErrBadToken     = apperr.Invalid("token is invalid or expired")
	ErrHasOrders    = apperr.Conflict("user has orders and cannot be deleted")
)

type Repository interface {
	Create(ctx context.Context, u *User, p *Profile) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, q Query) ([]User, error)
	Update(ctx context.Context, u *User, updatePassword bool) error
	SetStatus(ctx context.Context, id string, s Status) (*User, error)
	SetVerificationToken(ctx context.Context, id, token string) error
	VerifyEmail(ctx context.Context, token string) (*User, error)
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error
	ResetPassword(ctx context.Context, token, hash string) error
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const columns = `id, email, password_hash, full_name, phone, role, status, email_verified_at, created_at, updated_at`

func scan(row pgx.CollectableRow) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Role,
		&u.Status, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Tokens are stored as digests so a leaked table cannot be replayed.
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create inserts the user and, for cooperative and supplier roles, its
// organization in the same transaction.
func (r *PGRepo) Create(ctx context.Context, u *User, p *Profile) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO users (email, password_hash, full_name, phone, role, status)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, created_at, updated_at
		`, u.Email, u.PasswordHash, u.FullName, u.Phone, u.Role, u.Status,
		).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		switch u.Role {
		case auth.RoleCooperative:
			return cooperative.Insert(ctx, tx, &cooperative.Cooperative{
				OwnerID: u.ID, Name: p.Name, Description: p.Description,
				Region: p.Region, Address: p.Address, Phone: p.Phone, Email: u.Email,
			})
		case auth.RoleSupplier:
			return supplier.Insert(ctx, tx, &supplier.Supplier{
				OwnerID: u.ID, Name: p.Name, Description: p.Description,
				Address: p.Address, Phone: p.Phone, Email: u.Email,
			})
		}
		return nil
	})
	if postgres.IsUniqueViolation(err) {
		return ErrAlreadyExist
	}
	return err
}

func (r *PGRepo) one(ctx context.Context, sql string, args ...any) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, _ := r.db.Query(ctx, sql, args...)
	u, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.one(ctx, `SELECT `+columns+` FROM users WHERE id=$1`, id)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.one(ctx, `SELECT `+columns+` FROM users WHERE lower(email)=lower($1)`, email)
}

// Account satisfies auth.Accounts.
func (r *PGRepo) Account(ctx context.Context, id string) (*auth.Account, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Account{ID: u.ID, Email: u.Email, Role: u.Role, Active: u.Status == StatusActive}, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(q.Limit, q.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM users
		WHERE ($1 = '' OR email ILIKE '%'||$1||'%' OR full_name ILIKE '%'||$1||'%')
		  AND ($2 = '' OR role = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, strings.TrimSpace(q.Q), string(q.Role), string(q.Status), limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func (r *PGRepo) Update(ctx context.Context, u *User, updatePassword bool) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	hash := ""
	if updatePassword {
		hash = u.PasswordHash
	}
	rows, _ := r.db.Query(ctx, `
		UPDATE users
		SET full_name     = COALESCE(NULLIF($2, ''), full_name),
		    phone         = COALESCE(NULLIF($3, ''), phone),
		    password_hash = COALESCE(NULLIF($4, ''), password_hash),
		    updated_at    = NOW()
		WHERE id = $1
		RETURNING `+columns,
		u.ID, u.FullName, u.Phone, hash)
	out, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return ErrNotFound
		}
		return err
	}
	*u = out
	return nil
}

func (r *PGRepo) SetStatus(ctx context.Context, id string, s Status) (*User, error) {
	return r.one(ctx, `
		UPDATE users SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+columns, id, s)
}

func (r *PGRepo) SetVerificationToken(ctx context.Context, id, token string) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `UPDATE users SET verification_token = $2, updated_at = NOW() WHERE id = $1`,
		id, digest(token))
	return err
}

func (r *PGRepo) VerifyEmail(ctx context.Context, token string) (*User, error) {
	u, err := r.one(ctx, `
		UPDATE users
		SET email_verified_at = NOW(), verification_token = NULL, updated_at = NOW()
		WHERE verification_token = $1
		RETURNING `+columns, digest(token))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrBadToken
	}
	return u, err
}

func (r *PGRepo) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET reset_token = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, digest(token), expires)
	return err
}

func (r *PGRepo) ResetPassword(ctx context.Context, token, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_expires_at = NULL, updated_at = NOW()
		WHERE reset_token = $1 AND reset_expires_at > NOW()
	`, digest(token), hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBadToken
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		switch {
		case postgres.IsInvalidInput(err):
			return false, nil
		case postgres.IsForeignKeyViolation(err):
			return false, ErrHasOrders
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
