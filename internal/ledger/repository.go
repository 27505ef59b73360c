package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Account is the credit-bearing view of an accounts row.
type Account struct {
	ID             uuid.UUID `json:"id"`
	Plan           Plan      `json:"plan"`
	Credits        int       `json:"credits"`
	CreditsResetAt time.Time `json:"credits_reset_at"`
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so writes can join a
// caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const accountColumns = `id, plan, credits, credits_reset_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Plan, &a.Credits, &a.CreditsResetAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// Debit atomically subtracts delta if the balance covers it and returns the new
// balance. The floor is enforced by the WHERE clause, never by a prior read.
func (r *Repository) Debit(ctx context.Context, q Querier, id uuid.UUID, delta int) (int, error) {
	if q == nil {
		q = r.pool
	}
	var remaining int
	err := q.QueryRow(ctx, `
		UPDATE accounts SET credits = credits - $2, updated_at = now()
		WHERE id = $1 AND credits >= $2 AND credits > 0
		RETURNING credits
	`, id, delta).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrInsufficientCredits
}

// ResetCycle starts a new cycle only if the anchor is still seenAnchor. When a
// concurrent request already reset it, the current row is returned unchanged.
func (r *Repository) ResetCycle(ctx context.Context, id uuid.UUID, credits int, anchor, seenAnchor time.Time) (*Account, bool, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts SET credits = $2, credits_reset_at = $3, updated_at = now()
		WHERE id = $1 AND credits_reset_at = $4
		RETURNING `+accountColumns,
		id, credits, anchor, seenAnchor))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	a, err = r.Get(ctx, id)
	return a, false, err
}

// SetPlan overwrites tier, balance and anchor. Call inside the upgrade transaction.
func (r *Repository) SetPlan(ctx context.Context, q Querier, id uuid.UUID, plan Plan, credits int, anchor time.Time) (*Account, error) {
	if q == nil {
		q = r.pool
	}
	return scanAccount(q.QueryRow(ctx, `
		UPDATE accounts SET plan = $2, credits = $3, credits_reset_at = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		id, plan, credits, anchor))
}

// ListStaleCycles returns ids of accounts anchored before the given instant, oldest first.
func (r *Repository) ListStaleCycles(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM accounts WHERE credits_reset_at < $1
		ORDER BY credits_reset_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
