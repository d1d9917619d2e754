// Package auth issues and verifies session tokens for email/password accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"expense-tracker/currency"
	"expense-tracker/models"
	"expense-tracker/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

type Session struct {
	AccessToken string    `json:"access_token"`
	TokenID     string    `json:"-"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type SignUpParams struct {
	Email       string
	Password    string
	DisplayName string
	Currency    string
}

type Options struct {
	Secret          string
	TTL             time.Duration
	DefaultCurrency string
	Revoker         Revoker
}

type Service struct {
	accounts        store.AccountStore
	profiles        store.ProfileStore
	revoker         Revoker
	secret          []byte
	ttl             time.Duration
	defaultCurrency string
	now             func() time.Time
}

func NewService(accounts store.AccountStore, profiles store.ProfileStore, opts Options) *Service {
	if opts.Revoker == nil {
		opts.Revoker = NewMemoryRevoker()
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	return &Service{
		accounts:        accounts,
		profiles:        profiles,
		revoker:         opts.Revoker,
		secret:          []byte(opts.Secret),
		ttl:             opts.TTL,
		defaultCurrency: opts.DefaultCurrency,
		now:             time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates the account and its profile row. It does not sign in.
func (s *Service) SignUp(ctx context.Context, p SignUpParams) (*models.Account, error) {
	email := normalizeEmail(p.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(p.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	code := strings.ToUpper(strings.TrimSpace(p.Currency))
	if code == "" {
		code = s.defaultCurrency
	}
	if err := currency.ValidatePreferred(code); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{Email: email, PasswordHash: string(hash)}
	if err := s.accounts.InsertAccount(ctx, &account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	username := email[:strings.Index(email, "@")]
	fullName := strings.TrimSpace(p.DisplayName)
	if fullName == "" {
		fullName = username
	}

	profile := models.Profile{
		ID:              account.ID,
		Username:        username,
		FullName:        fullName,
		DefaultCurrency: code,
	}
	if err := s.profiles.InsertProfile(ctx, &profile); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &account, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(account)
}

func (s *Service) issue(account *models.Account) (*Session, error) {
	now := s.now()
	claims := Claims{
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{
		AccessToken: token,
		TokenID:     claims.ID,
		UserID:      account.ID,
		Email:       account.Email,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Verify parses token and checks it has not expired or been revoked.
func (s *Service) Verify(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.revoker.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	return &Session{
		AccessToken: token,
		TokenID:     claims.ID,
		UserID:      userID,
		Email:       claims.Email,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// SignOut revokes token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	session, err := s.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil
		}
		return err
	}
	if err := s.revoker.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// CurrentUserEmail returns the email of the account token belongs to.
func (s *Service) CurrentUserEmail(ctx context.Context, token string) (string, error) {
	session, err := s.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	return session.Email, nil
}
