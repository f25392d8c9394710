package jobs

import (
	"context"
	"log/slog"
	"time"

	"pointsledger/internal/models"
)

const defaultReconcileTimeout = 5 * time.Minute

type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]models.Reconciliation, error)
}

// ReconcileJob compares every stored balance with its ledger sum and reports drift.
// It never repairs anything.
type ReconcileJob struct {
	ledger  Reconciler
	logger  *slog.Logger
	timeout time.Duration
}

func NewReconcileJob(ledger Reconciler, logger *slog.Logger) *ReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{ledger: ledger, logger: logger, timeout: defaultReconcileTimeout}
}

// Run satisfies cron.Job.
func (j *ReconcileJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, _ = j.RunOnce(ctx)
}

// RunOnce returns the drifting accounts.
func (j *ReconcileJob) RunOnce(ctx context.Context) ([]models.Reconciliation, error) {
	started := time.Now()
	rows, err := j.ledger.ReconcileAll(ctx)
	if err != nil {
		j.logger.Error("reconciliation failed", "error", err)
		return nil, err
	}
	var drifted []models.Reconciliation
	for _, row := range rows {
		if row.Consistent() {
			continue
		}
		drifted = append(drifted, row)
		j.logger.Error("balance drift detected",
			"account_id", row.AccountID,
			"stored_balance", row.StoredBalance,
			"ledger_sum", row.LedgerSum,
			"difference", row.Difference,
			"entry_count", row.EntryCount,
		)
	}
	j.logger.Info("reconciliation finished",
		"accounts", len(rows),
		"drifted", len(drifted),
		"duration", time.Since(started),
	)
	return drifted, nil
}
