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

// ErrPaymentNotFound is returned when no order matches the account and order id.
var ErrPaymentNotFound = errors.New("payment not found")

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, account_id, order_id, amount_paise, currency, plan, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, p.ID, p.AccountID, p.OrderID, p.AmountPaise, p.Currency, p.Plan, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// MarkVerifiedTx records the gateway payment id and signature on a pending or
// already verified order. Applied orders are returned untouched.
func (r *PaymentRepo) MarkVerifiedTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, orderID, paymentID, signature string) (*models.Payment, error) {
	var p models.Payment
	err := tx.QueryRow(ctx, `
		UPDATE payments
		SET payment_id = $3, signature = $4,
		    status = CASE WHEN status = 'applied' THEN status ELSE 'verified' END,
		    updated_at = now()
		WHERE account_id = $1 AND order_id = $2
		RETURNING id, account_id, order_id, payment_id, signature, amount_paise, currency, plan, status, created_at, updated_at
	`, accountID, orderID, paymentID, signature).Scan(&p.ID, &p.AccountID, &p.OrderID, &p.PaymentID, &p.Signature, &p.AmountPaise, &p.Currency, &p.Plan, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkProcessed claims paymentID for an upgrade. It returns false when the id was
// already claimed, in which case nothing was written. Run it in the same
// transaction as the plan change so the claim and the grant commit together.
func (r *PaymentRepo) MarkProcessed(ctx context.Context, q ledger.Querier, paymentID string, accountID uuid.UUID, plan ledger.Plan) (bool, error) {
	if q == nil {
		q = r.pool
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO processed_payments (payment_id, account_id, plan)
		VALUES ($1, $2, $3)
		ON CONFLICT (payment_id) DO NOTHING
	`, paymentID, accountID, plan)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := q.Exec(ctx, `
		UPDATE payments SET status = 'applied', updated_at = now() WHERE payment_id = $1
	`, paymentID); err != nil {
		return false, err
	}
	return true, nil
}
