package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/gstdocai/backend/internal/ledger"
)

// ApplyUpgradeArgs asks for a verified payment's plan change to be applied.
type ApplyUpgradeArgs struct {
	AccountID uuid.UUID   `json:"account_id"`
	Plan      ledger.Plan `json:"plan"`
	PaymentID string      `json:"payment_id"`
}

func (ApplyUpgradeArgs) Kind() string { return "apply_plan_upgrade" }

func (ApplyUpgradeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 10}
}

// UpgradeApplier defines the contract the worker needs to apply an upgrade.
type UpgradeApplier interface {
	ApplyUpgrade(ctx context.Context, accountID uuid.UUID, plan ledger.Plan, paymentID string) (bool, error)
}

// ApplyUpgradeWorker runs at least once per enqueued payment; the applier makes
// repeats harmless.
type ApplyUpgradeWorker struct {
	river.WorkerDefaults[ApplyUpgradeArgs]
	applier UpgradeApplier
	logger  *slog.Logger
}

func NewApplyUpgradeWorker(applier UpgradeApplier, logger *slog.Logger) *ApplyUpgradeWorker {
	return &ApplyUpgradeWorker{applier: applier, logger: logger}
}

func (w *ApplyUpgradeWorker) Timeout(*river.Job[ApplyUpgradeArgs]) time.Duration {
	return 30 * time.Second
}

func (w *ApplyUpgradeWorker) Work(ctx context.Context, job *river.Job[ApplyUpgradeArgs]) error {
	args := job.Args

	applied, err := w.applier.ApplyUpgrade(ctx, args.AccountID, args.Plan, args.PaymentID)
	if errors.Is(err, ledger.ErrUnknownPlan) || errors.Is(err, ledger.ErrNotFound) {
		// Retrying cannot fix these; the payment needs manual reconciliation.
		w.logger.Error("upgrade cancelled",
			"job_id", job.ID, "account_id", args.AccountID, "plan", args.Plan,
			"payment_id", args.PaymentID, "error", err)
		return river.JobCancel(err)
	}
	if err != nil {
		w.logger.Warn("upgrade attempt failed",
			"job_id", job.ID, "attempt", job.Attempt, "payment_id", args.PaymentID, "error", err)
		return err
	}
	w.logger.Info("upgrade job done", "job_id", job.ID, "payment_id", args.PaymentID, "applied", applied)
	return nil
}
