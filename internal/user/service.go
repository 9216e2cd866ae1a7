// Package user manages accounts: registration, login, email verification,
// password reset and the admin approval of cooperative and supplier accounts.
package user

import (
	"context"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/mail"
)

var (
	ErrBadCredentials = apperr.Unauthorized("invalid email or password")
	ErrPending        = apperr.Forbidden("account is pending approval")
	ErrSuspended      = apperr.Forbidden("account is suspended")
)

const minPasswordLen = 8

type Service struct {
	repo      Repository
	tokens    *auth.Tokens
	publicURL string
	resetTTL  time.Duration
	now       func() time.Time
	deliver   func(ctx context.Context, m mail.Message, err error)
}

func NewService(repo Repository, tokens *auth.Tokens, sender mail.Sender, publicURL string, resetTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		publicURL: strings.TrimRight(publicURL, "/"),
		resetTTL:  resetTTL,
		now:       time.Now,
		deliver: func(ctx context.Context, m mail.Message, err error) {
			mail.SendAsync(ctx, sender, m, err)
		},
	}
}

func (s *Service) link(path, token string) string {
	return s.publicURL + path + "?token=" + url.QueryEscape(token)
}

func normalizeEmail(e string) (string, error) {
	e = strings.ToLower(strings.TrimSpace(e))
	addr, err := netmail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", &fieldError{"email", "must be a valid address"}
	}
	return e, nil
}

type fieldError struct{ field, reason string }

func (e *fieldError) Error() string     { return e.field + ": " + e.reason }
func (e *fieldError) Kind() apperr.Kind { return apperr.KindInvalid }

func checkPassword(pw string) error {
	if len(pw) < minPasswordLen {
		return &fieldError{"password", "must be at least 8 characters"}
	}
	return nil
}

// Register creates the account. Customers are active at once; cooperatives
// and suppliers wait for an admin in status pending.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, &fieldError{"full_name", "is required"}
	}
	role := req.Role
	if role == "" {
		role = auth.RoleCustomer
	}
	if !role.Valid() || role == auth.RoleAdmin {
		return nil, &fieldError{"role", "must be customer, cooperative or supplier"}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        req.Phone,
		Role:         role,
		Status:       StatusActive,
	}
	var profile *Profile
	if role == auth.RoleCooperative || role == auth.RoleSupplier {
		u.Status = StatusPending
		profile = &Profile{Name: u.FullName, Phone: u.Phone}
		if req.Profile != nil {
			profile = req.Profile
			if strings.TrimSpace(profile.Name) == "" {
				profile.Name = u.FullName
			}
		}
	}
	if err := s.repo.Create(ctx, u, profile); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	lg := zctx.From(ctx)
	lg.Info("User registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))

	if err := s.sendVerification(ctx, u); err != nil {
		lg.Warn("Store verification token", zap.Error(err))
	}
	if u.Status == StatusPending {
		m, err := mail.RegistrationPending(u.Email, u.FullName, string(u.Role))
		s.deliver(ctx, m, err)
	}
	return u, nil
}

func (s *Service) sendVerification(ctx context.Context, u *User) error {
	token, err := auth.RandomToken(32)
	if err != nil {
		return err
	}
	if err := s.repo.SetVerificationToken(ctx, u.ID, token); err != nil {
		return err
	}
	m, err := mail.Verification(u.Email, u.FullName, s.link("/verify-email", token))
	s.deliver(ctx, m, err)
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	switch u.Status {
	case StatusPending:
		return nil, ErrPending
	case StatusSuspended:
		return nil, ErrSuspended
	}
	token, exp, err := s.tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, &fieldError{"token", "is required"}
	}
	return s.repo.VerifyEmail(ctx, token)
}

// ResendVerification is silent about unknown or already verified addresses.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if u.EmailVerifiedAt != nil {
		return nil
	}
	return s.sendVerification(ctx, u)
}

// ForgotPassword is silent about unknown addresses so it cannot be used to
// enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := auth.RandomToken(32)
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, u.ID, token, s.now().Add(s.resetTTL)); err != nil {
		return errors.Wrap(err, "store reset token")
	}
	m, err := mail.PasswordReset(u.Email, u.FullName, s.link("/reset-password", token), s.resetTTL)
	s.deliver(ctx, m, err)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return &fieldError{"token", "is required"}
	}
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.ResetPassword(ctx, token, hash)
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, q Query) ([]User, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	u := &User{ID: id, FullName: strings.TrimSpace(req.FullName), Phone: req.Phone}
	updatePassword := false
	if req.Password != "" {
		if err := checkPassword(req.Password); err != nil {
			return nil, err
		}
		h, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = h
		updatePassword = true
	}
	if err := s.repo.Update(ctx, u, updatePassword); err != nil {
		return nil, err
	}
	return u, nil
}

// SetStatus is the admin approval and suspension switch.
func (s *Service) SetStatus(ctx context.Context, id string, st Status) (*User, error) {
	if !st.Valid() {
		return nil, &fieldError{"status", "must be pending, active or suspended"}
	}
	return s.repo.SetStatus(ctx, id, st)
}

// Delete removes the account and notifies its owner by email.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	m, err := mail.AccountDeleted(u.Email, u.FullName)
	s.deliver(ctx, m, err)
	return nil
}
