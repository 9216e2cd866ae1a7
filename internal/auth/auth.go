// Package auth hashes passwords, issues and verifies access tokens and
// resolves a bearer token into the caller's Identity.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/MikeMC777/coopmarket/internal/apperr"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCooperative Role = "cooperative"
	RoleSupplier    Role = "supplier"
	RoleCustomer    Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCooperative, RoleSupplier, RoleCustomer:
		return true
	}
	return false
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// Is reports whether the caller holds any of roles.
func (i Identity) Is(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

var (
	ErrInvalidToken = apperr.Unauthorized("invalid or expired token")
	ErrInactive     = apperr.Forbidden("account is not active")
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// RandomToken returns a hex string of n random bytes, used for email
// verification and password reset links.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return hex.EncodeToString(b), nil
}

type claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and parses HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(id Identity) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return s, exp, nil
}

func (t *Tokens) Parse(raw string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, Email: c.Email, Role: c.Role}, nil
}

// Account is what the verifier needs to know about a stored user.
type Account struct {
	ID     string
	Email  string
	Role   Role
	Active bool
}

// Accounts loads accounts by id.
type Accounts interface {
	Account(ctx context.Context, id string) (*Account, error)
}

// Verifier turns a bearer token into the caller's Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// TokenVerifier checks the token signature and expiry and then reloads the
// account so role changes and suspensions apply immediately.
type TokenVerifier struct {
	tokens   *Tokens
	accounts Accounts
}

func NewVerifier(tokens *Tokens, accounts Accounts) *TokenVerifier {
	return &TokenVerifier{tokens: tokens, accounts: accounts}
}

func (v *TokenVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	id, err := v.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	acc, err := v.accounts.Account(ctx, id.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, errors.Wrap(err, "load account")
	}
	if !acc.Active {
		return Identity{}, ErrInactive
	}
	return Identity{UserID: acc.ID, Email: acc.Email, Role: acc.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
