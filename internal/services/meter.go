package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/observability"
)

// MeterStore is the subset of the ledger repository the meter needs.
type MeterStore interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	ResetCycle(ctx context.Context, id uuid.UUID, credits int, anchor, seenAnchor time.Time) (*ledger.Account, bool, error)
	Debit(ctx context.Context, q ledger.Querier, id uuid.UUID, delta int) (int, error)
}

// CreditMeter applies the lazy monthly reset and consumes credits.
// It holds no per-account state; every decision is taken against the store.
type CreditMeter struct {
	Store   MeterStore
	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func NewCreditMeter(store MeterStore, logger *slog.Logger, metrics *observability.Metrics) *CreditMeter {
	return &CreditMeter{Store: store, Logger: logger, Metrics: metrics}
}

// now is truncated to Postgres timestamp precision so an anchor written by a
// reset compares equal when read back.
func (m *CreditMeter) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC().Truncate(time.Microsecond)
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CheckAndReset returns the account with its balance current for this calendar
// month. When the anchor is in an earlier month the balance is overwritten with
// the plan allotment and the anchor moved to now before returning.
func (m *CreditMeter) CheckAndReset(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error) {
	acc, err := m.Store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if !ledger.NeedsReset(acc.CreditsResetAt, now) {
		return acc, nil
	}

	allotment, err := ledger.Allotment(acc.Plan)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, err)
	}
	updated, applied, err := m.Store.ResetCycle(ctx, accountID, allotment, now, acc.CreditsResetAt)
	if err != nil {
		return nil, fmt.Errorf("reset cycle: %w", err)
	}
	if applied {
		m.Logger.Info("credit cycle reset",
			"account_id", accountID, "plan", acc.Plan,
			"previous_anchor", acc.CreditsResetAt, "credits", allotment)
		if m.Metrics != nil {
			m.Metrics.CycleResetsTotal.WithLabelValues(string(acc.Plan)).Inc()
		}
	}
	return updated, nil
}

// Debit consumes exactly one credit. Pass the caller's transaction as q so the
// debit commits with the artifact; nil runs it on its own.
func (m *CreditMeter) Debit(ctx context.Context, q ledger.Querier, accountID uuid.UUID) (int, error) {
	return m.Store.Debit(ctx, q, accountID, 1)
}
