package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/gstdocai/backend/internal/ledger"
)

const defaultSweepBatch = 500

// ResetSweepArgs triggers one pass over accounts whose cycle has ended.
type ResetSweepArgs struct{}

func (ResetSweepArgs) Kind() string { return "reset_credit_sweep" }

type StaleCycleLister interface {
	ListStaleCycles(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

type CycleResetter interface {
	CheckAndReset(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error)
}

// ResetSweepWorker applies the monthly reset to idle accounts so stored
// balances stay current. It uses the same reset as the request path.
type ResetSweepWorker struct {
	river.WorkerDefaults[ResetSweepArgs]
	lister    StaleCycleLister
	resetter  CycleResetter
	now       func() time.Time
	batchSize int
	logger    *slog.Logger
}

func NewResetSweepWorker(lister StaleCycleLister, resetter CycleResetter, logger *slog.Logger) *ResetSweepWorker {
	return &ResetSweepWorker{
		lister:    lister,
		resetter:  resetter,
		now:       time.Now,
		batchSize: defaultSweepBatch,
		logger:    logger,
	}
}

// ResetSweepPeriodicJob schedules the sweep every interval, starting at boot.
func ResetSweepPeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return ResetSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

func (w *ResetSweepWorker) Work(ctx context.Context, job *river.Job[ResetSweepArgs]) error {
	before := ledger.MonthStart(w.now())
	var reset, failed int
	for {
		ids, err := w.lister.ListStaleCycles(ctx, before, w.batchSize)
		if err != nil {
			return fmt.Errorf("list stale cycles: %w", err)
		}
		batchFailed := 0
		for _, id := range ids {
			if _, err := w.resetter.CheckAndReset(ctx, id); err != nil {
				w.logger.Error("sweep reset failed", "account_id", id, "error", err)
				batchFailed++
				continue
			}
			reset++
		}
		failed += batchFailed
		// Stop on a short batch, or when nothing in the batch made progress.
		if len(ids) < w.batchSize || batchFailed == len(ids) {
			break
		}
	}

	w.logger.Info("credit reset sweep done", "job_id", job.ID, "before", before, "reset", reset, "failed", failed)
	if failed > 0 && reset == 0 {
		return fmt.Errorf("reset sweep: all %d resets failed", failed)
	}
	return nil
}
