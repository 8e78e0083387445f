package ledger

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
)

const reconcileChunk = 500

// EntryMismatch is the first entry whose recorded balance_after disagrees
// with the replayed running balance.
type EntryMismatch struct {
	EntryID  uuid.UUID `json:"entry_id"`
	Sequence int64     `json:"sequence"`
	Expected int64     `json:"expected"`
	Recorded int64     `json:"recorded"`
}

// ReconcileReport compares an account's cached balance with a replay of its
// entries starting from the initial balance.
type ReconcileReport struct {
	AccountID       uuid.UUID      `json:"account_id"`
	InitialBalance  int64          `json:"initial_balance"`
	CachedBalance   int64          `json:"cached_balance"`
	ReplayedBalance int64          `json:"replayed_balance"`
	Entries         int64          `json:"entries"`
	SequenceGap     bool           `json:"sequence_gap"`
	Mismatch        *EntryMismatch `json:"mismatch,omitempty"`
	Consistent      bool           `json:"consistent"`
}

// Reconcile replays entries up to the account's current version. Entries are
// committed with the version bump, so every sequence up to that version is
// visible once the account row is.
func (s *service) Reconcile(ctx context.Context, accountID uuid.UUID) (ReconcileReport, error) {
	if accountID == uuid.Nil {
		return ReconcileReport{}, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.FindAccount(ctx, accountID)
	if err != nil {
		return ReconcileReport{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return ReconcileReport{}, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}

	report := ReconcileReport{
		AccountID:      account.ID,
		InitialBalance: account.InitialBalance,
		CachedBalance:  account.Balance,
	}
	running := account.InitialBalance
	var last int64
	for {
		entries, err := s.repo.ListEntriesAscending(ctx, accountID, last, account.Version, reconcileChunk)
		if err != nil {
			return ReconcileReport{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay ledger entries")
		}
		for _, entry := range entries {
			if entry.Sequence != last+1 {
				report.SequenceGap = true
			}
			last = entry.Sequence
			running += entry.Amount
			report.Entries++
			if report.Mismatch == nil && entry.BalanceAfter != running {
				report.Mismatch = &EntryMismatch{
					EntryID:  entry.ID,
					Sequence: entry.Sequence,
					Expected: running,
					Recorded: entry.BalanceAfter,
				}
			}
		}
		if len(entries) < reconcileChunk {
			break
		}
	}

	report.ReplayedBalance = running
	if report.Entries != account.Version {
		report.SequenceGap = true
	}
	report.Consistent = !report.SequenceGap && report.Mismatch == nil && running == account.Balance && running >= 0

	if !report.Consistent {
		s.metrics.IncReconcileMismatch()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"account_id":       accountID.String(),
				"cached_balance":   report.CachedBalance,
				"replayed_balance": report.ReplayedBalance,
				"entries":          report.Entries,
				"version":          account.Version,
			})
			s.logg.Warn(logCtx, "ledger reconcile mismatch")
		}
	}
	return report, nil
}
