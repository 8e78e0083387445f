package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mianhamzaathar/AIFORGE/pkg/db"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 25 * time.Millisecond

	referenceIndex  = "ux_ledger_entries_reference"
	referenceColumn = "ledger_entries.reference"
)

// errVersionConflict means another writer changed the account between the
// read and the balance update.
var errVersionConflict = errors.New("ledger: account version changed concurrently")

// withRetry replays fn while it fails with a transient storage conflict. Once
// the attempts are spent the conflict surfaces as a dependency error and no
// partial write remains.
func (s *service) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := s.retry.Attempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	base := s.retry.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	tries := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		if tries > 1 {
			s.metrics.IncRetry(operation)
		}
		err := fn(ctx)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && isTransient(err) {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"operation": operation, "attempts": tries})
			s.logg.Warn(logCtx, "ledger transaction conflict persisted")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger is busy, retry later")
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, errVersionConflict) || db.IsRetryable(err)
}

func isReferenceConflict(err error) bool {
	return db.IsUniqueViolation(err, referenceIndex) || db.IsUniqueViolation(err, referenceColumn)
}
