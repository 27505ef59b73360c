package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountSelect = `
	SELECT id, email, name, password_hash, plan, credits, credits_reset_at, created_at, updated_at
	FROM accounts`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Plan, &a.Credits, &a.CreditsResetAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account. Plan, credits and the cycle anchor come from the
// column defaults (free, 5, now()) unless set on a.
func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	if a.Plan == "" {
		a.Plan = ledger.PlanFree
	}
	if a.Credits == 0 {
		a.Credits, _ = ledger.Allotment(a.Plan)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, name, password_hash, plan, credits)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, credits_reset_at, created_at, updated_at
	`, a.Email, a.Name, a.PasswordHash, a.Plan, a.Credits).Scan(&a.ID, &a.CreditsResetAt, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, accountSelect+` WHERE id = $1`, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, accountSelect+` WHERE lower(email) = lower($1)`, email))
}
