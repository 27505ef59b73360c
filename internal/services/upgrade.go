package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/observability"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PlanWriter overwrites an account's tier inside a transaction.
type PlanWriter interface {
	SetPlan(ctx context.Context, q ledger.Querier, id uuid.UUID, plan ledger.Plan, credits int, anchor time.Time) (*ledger.Account, error)
}

// PaymentMarker records a payment id as consumed. It reports false when the
// id was already recorded.
type PaymentMarker interface {
	MarkProcessed(ctx context.Context, q ledger.Querier, paymentID string, accountID uuid.UUID, plan ledger.Plan) (bool, error)
}

// UpgradeApplier applies a verified payment's plan change exactly once per payment id.
type UpgradeApplier struct {
	Pool     TxBeginner
	Accounts PlanWriter
	Payments PaymentMarker
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

func NewUpgradeApplier(pool TxBeginner, accounts PlanWriter, payments PaymentMarker, logger *slog.Logger, metrics *observability.Metrics) *UpgradeApplier {
	return &UpgradeApplier{Pool: pool, Accounts: accounts, Payments: payments, Logger: logger, Metrics: metrics}
}

// ApplyUpgrade sets the account to plan with a fresh allotment anchored one
// billing cycle ahead. A replayed paymentID is a silent no-op (false, nil).
func (u *UpgradeApplier) ApplyUpgrade(ctx context.Context, accountID uuid.UUID, plan ledger.Plan, paymentID string) (bool, error) {
	allotment, err := ledger.Allotment(plan)
	if err != nil {
		u.count("unknown_plan")
		return false, err
	}
	if paymentID == "" {
		return false, fmt.Errorf("payment id is required")
	}

	now := time.Now()
	if u.Now != nil {
		now = u.Now()
	}
	anchor := ledger.NextBillingCycle(now.UTC().Truncate(time.Microsecond))

	tx, err := u.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin upgrade tx: %w", err)
	}
	defer tx.Rollback(ctx)

	fresh, err := u.Payments.MarkProcessed(ctx, tx, paymentID, accountID, plan)
	if err != nil {
		return false, fmt.Errorf("record processed payment: %w", err)
	}
	if !fresh {
		u.Logger.Info("duplicate upgrade ignored", "account_id", accountID, "payment_id", paymentID)
		u.count("duplicate")
		return false, nil
	}

	acc, err := u.Accounts.SetPlan(ctx, tx, accountID, plan, allotment, anchor)
	if err != nil {
		return false, fmt.Errorf("set plan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit upgrade tx: %w", err)
	}

	u.Logger.Info("plan upgraded",
		"account_id", accountID, "plan", acc.Plan, "credits", acc.Credits,
		"credits_reset_at", acc.CreditsResetAt, "payment_id", paymentID)
	u.count("applied")
	return true, nil
}

func (u *UpgradeApplier) count(result string) {
	if u.Metrics != nil {
		u.Metrics.UpgradesTotal.WithLabelValues(result).Inc()
	}
}
