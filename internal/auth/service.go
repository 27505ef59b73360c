package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/models"
)

const (
	MinPasswordLength = 8
	tokenTTL          = 24 * time.Hour
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInvalidInput   = errors.New("invalid registration input")
	ErrInvalidLogin   = errors.New("invalid credentials")
	ErrInvalidToken   = errors.New("invalid token")
)

// AccountStore is the subset of the account repository auth needs.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Service interface {
	Register(ctx context.Context, email, password, name string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type service struct {
	store  AccountStore
	secret []byte
	now    func() time.Time
}

func NewService(store AccountStore, secret string) *service {
	return &service{store: store, secret: []byte(secret), now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

// Register creates a free-plan account with its first allotment anchored now.
func (s *service) Register(ctx context.Context, email, password, name string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidInput
	}
	if len(password) < MinPasswordLength {
		return nil, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Plan:         ledger.PlanFree,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ledger.ErrNotFound) {
		return "", ErrInvalidLogin
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidLogin
	}
	return s.issueToken(acc.ID)
}

func (s *service) issueToken(accountID uuid.UUID) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	var c jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
