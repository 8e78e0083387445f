package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

const defaultReconcileBatchSize = 200

// LedgerReconcileJobParams configure the nightly ledger replay.
type LedgerReconcileJobParams struct {
	Logger    *logger.Logger
	Accounts  accountLister
	Ledger    reconciler
	BatchSize int
}

type accountLister interface {
	ListAccountIDs(ctx context.Context, afterID uuid.UUID, limit int) ([]uuid.UUID, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, accountID uuid.UUID) (ledger.ReconcileReport, error)
}

// NewLedgerReconcileJob replays every account's ledger and reports drift
// between the cached balance and the entry history.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account lister required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &ledgerReconcileJob{
		logg:     params.Logger,
		accounts: params.Accounts,
		ledger:   params.Ledger,
		batch:    batch,
	}, nil
}

type ledgerReconcileJob struct {
	logg     *logger.Logger
	accounts accountLister
	ledger   reconciler
	batch    int
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	var (
		errs       error
		checked    int
		mismatched int
		after      uuid.UUID
	)

	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		ids, err := j.accounts.ListAccountIDs(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list accounts: %w", err))
		}
		for _, id := range ids {
			report, err := j.ledger.Reconcile(ctx, id)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", id, err))
				continue
			}
			checked++
			if !report.Consistent {
				mismatched++
			}
		}
		if len(ids) < j.batch {
			break
		}
		after = ids[len(ids)-1]
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"accounts_checked": checked,
		"mismatches":       mismatched,
	})
	if mismatched > 0 {
		j.logg.Warn(logCtx, "ledger reconcile found inconsistent accounts")
	} else {
		j.logg.Info(logCtx, "ledger reconcile complete")
	}
	return errs
}
