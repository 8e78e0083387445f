package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/metrics"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/payloads"
	"github.com/mianhamzaathar/AIFORGE/pkg/pagination"
)

// Service is the only writer of account balances. Every mutation appends
// exactly one ledger entry and updates the cached balance in the same
// transaction.
type Service interface {
	Debit(ctx context.Context, input DebitInput) (DebitResult, error)
	Credit(ctx context.Context, input CreditInput) (CreditResult, error)
	Charge(ctx context.Context, accountID uuid.UUID, op Operation) (DebitResult, error)
	History(ctx context.Context, accountID uuid.UUID, opts HistoryOptions) (HistoryPage, error)
	UsageSummary(ctx context.Context, accountID uuid.UUID, since *time.Time) (Usage, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (ReconcileReport, error)
	Costs() CostTable
}

// txRunner is satisfied by *db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DebitInput removes Amount tokens from an account.
type DebitInput struct {
	AccountID uuid.UUID        `json:"account_id"`
	Amount    int64            `json:"amount"`
	Kind      enums.LedgerKind `json:"kind"`
}

// DebitResult reports the outcome of a debit. Applied is false when the
// balance could not cover the amount; nothing was written in that case.
type DebitResult struct {
	Applied bool                `json:"applied"`
	Entry   *models.LedgerEntry `json:"entry,omitempty"`
	Balance int64               `json:"balance"`
}

// CreditInput adds Amount tokens to an account. A non-empty Reference makes
// the credit idempotent: a second credit with the same reference is not
// applied and returns the original entry.
type CreditInput struct {
	AccountID uuid.UUID        `json:"account_id"`
	Amount    int64            `json:"amount"`
	Kind      enums.LedgerKind `json:"kind"`
	Reference string           `json:"reference,omitempty"`
}

type CreditResult struct {
	Entry     *models.LedgerEntry `json:"entry"`
	Duplicate bool                `json:"duplicate"`
}

// HistoryOptions pages an account's entries newest first. A zero Limit
// returns the full history.
type HistoryOptions struct {
	Limit  int
	Cursor string
	Since  *time.Time
}

type HistoryPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// Usage maps each kind to the total tokens debited under it.
type Usage map[enums.LedgerKind]int64

// RetryPolicy bounds how often a transaction is replayed after a storage
// conflict.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Costs   CostTable
	Outbox  outbox.Emitter
	Metrics *metrics.LedgerMetrics
	Logger  *logger.Logger
	Retry   RetryPolicy
	// Clock stamps entry creation times; defaults to time.Now in UTC.
	Clock func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	costs   CostTable
	outbox  outbox.Emitter
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	retry   RetryPolicy
	clock   func() time.Time
}

// NewService validates params and returns the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if len(params.Costs.perKind) == 0 {
		return nil, fmt.Errorf("cost table required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		costs:   params.Costs,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		retry:   params.Retry,
		clock:   clock,
	}, nil
}

func (s *service) Costs() CostTable {
	return s.costs
}

func (s *service) Debit(ctx context.Context, input DebitInput) (DebitResult, error) {
	if err := validateMutation(input.AccountID, input.Amount, input.Kind); err != nil {
		return DebitResult{}, err
	}

	var result DebitResult
	err := s.withRetry(ctx, "debit", func(ctx context.Context) error {
		result = DebitResult{}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			account, err := s.lockAccount(ctx, repo, input.AccountID)
			if err != nil {
				return err
			}
			if account.Balance < input.Amount {
				result.Balance = account.Balance
				return nil
			}

			entry, err := s.apply(ctx, tx, repo, account, -input.Amount, input.Kind, nil)
			if err != nil {
				return err
			}
			result = DebitResult{Applied: true, Entry: entry, Balance: entry.BalanceAfter}
			return nil
		})
	})
	if err != nil {
		return DebitResult{}, err
	}

	s.metrics.ObserveDebit(string(input.Kind), input.Amount, result.Applied)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": input.AccountID.String(),
			"kind":       input.Kind,
			"amount":     input.Amount,
			"balance":    result.Balance,
		})
		if result.Applied {
			s.logg.Info(logCtx, "ledger debit applied")
		} else {
			s.logg.Info(logCtx, "ledger debit refused")
		}
	}
	return result, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (CreditResult, error) {
	if input.Kind == "" {
		input.Kind = enums.LedgerKindPurchase
	}
	if err := validateMutation(input.AccountID, input.Amount, input.Kind); err != nil {
		return CreditResult{}, err
	}
	input.Reference = strings.TrimSpace(input.Reference)

	var reference *string
	if input.Reference != "" {
		reference = &input.Reference
		if existing, err := s.existingCredit(ctx, input); existing != nil || err != nil {
			return s.duplicateCredit(ctx, input, existing, err)
		}
	}

	var entry *models.LedgerEntry
	err := s.withRetry(ctx, "credit", func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			account, err := s.lockAccount(ctx, repo, input.AccountID)
			if err != nil {
				return err
			}
			entry, err = s.apply(ctx, tx, repo, account, input.Amount, input.Kind, reference)
			return err
		})
	})
	if err != nil {
		if reference != nil && isReferenceConflict(err) {
			existing, lookupErr := s.existingCredit(ctx, input)
			if existing == nil && lookupErr == nil {
				lookupErr = err
			}
			return s.duplicateCredit(ctx, input, existing, lookupErr)
		}
		return CreditResult{}, err
	}

	s.metrics.ObserveCredit(string(input.Kind), input.Amount, false)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": input.AccountID.String(),
			"kind":       input.Kind,
			"amount":     input.Amount,
			"balance":    entry.BalanceAfter,
		})
		s.logg.Info(logCtx, "ledger credit applied")
	}
	return CreditResult{Entry: entry}, nil
}

// existingCredit looks up a previous credit by reference and checks that it
// is the same credit: account, amount and kind.
func (s *service) existingCredit(ctx context.Context, input CreditInput) (*models.LedgerEntry, error) {
	existing, err := s.repo.FindEntryByReference(ctx, input.Reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup ledger reference")
	}
	if existing == nil {
		return nil, nil
	}
	if existing.AccountID != input.AccountID || existing.Amount != input.Amount || existing.Kind != input.Kind {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "reference already used for a different credit")
	}
	return existing, nil
}

func (s *service) duplicateCredit(ctx context.Context, input CreditInput, existing *models.LedgerEntry, err error) (CreditResult, error) {
	if err != nil {
		return CreditResult{}, err
	}
	s.metrics.ObserveCredit(string(input.Kind), input.Amount, true)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": input.AccountID.String(),
			"reference":  input.Reference,
			"entry_id":   existing.ID.String(),
		})
		s.logg.Info(logCtx, "ledger credit already applied")
	}
	return CreditResult{Entry: existing, Duplicate: true}, nil
}

// Charge debits the configured price of op.
func (s *service) Charge(ctx context.Context, accountID uuid.UUID, op Operation) (DebitResult, error) {
	price, err := s.costs.Price(op)
	if err != nil {
		return DebitResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown operation")
	}
	return s.Debit(ctx, DebitInput{AccountID: accountID, Amount: price.Tokens, Kind: price.Kind})
}

func (s *service) History(ctx context.Context, accountID uuid.UUID, opts HistoryOptions) (HistoryPage, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return HistoryPage{}, err
	}
	if opts.Limit < 0 {
		return HistoryPage{}, pkgerrors.New(pkgerrors.CodeValidation, "limit must not be negative")
	}
	cursor, err := pagination.ParseCursor(opts.Cursor)
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := EntryFilter{Since: opts.Since}
	if cursor != nil {
		filter.BeforeSequence = cursor.Sequence
	}
	if opts.Limit > 0 {
		filter.Limit = opts.Limit + 1
	}

	entries, err := s.repo.ListEntries(ctx, accountID, filter)
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ledger entries")
	}

	page := HistoryPage{}
	var more bool
	page.Entries, more = pagination.Trim(entries, opts.Limit)
	if more {
		last := page.Entries[len(page.Entries)-1]
		page.NextCursor = pagination.Cursor{Sequence: last.Sequence}.String()
	}
	if page.Entries == nil {
		page.Entries = []models.LedgerEntry{}
	}
	return page, nil
}

// UsageSummary totals debited tokens per kind. Kinds without debits are
// absent from the result.
func (s *service) UsageSummary(ctx context.Context, accountID uuid.UUID, since *time.Time) (Usage, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	totals, err := s.repo.SumDebitsByKind(ctx, accountID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarize usage")
	}
	usage := make(Usage, len(totals))
	for _, total := range totals {
		if total.Total > 0 {
			usage[total.Kind] = total.Total
		}
	}
	return usage, nil
}

func (s *service) ensureAccount(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.FindAccount(ctx, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return nil
}

func (s *service) lockAccount(ctx context.Context, repo Repository, accountID uuid.UUID) (*models.Account, error) {
	account, err := repo.LockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return account, nil
}

// apply writes one entry against a locked account. The version check makes
// a lost update impossible even where row locks are not honored.
func (s *service) apply(ctx context.Context, tx *gorm.DB, repo Repository, account *models.Account, delta int64, kind enums.LedgerKind, reference *string) (*models.LedgerEntry, error) {
	balance := account.Balance + delta
	if delta > 0 && balance < account.Balance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit would overflow balance")
	}
	if balance < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient token balance")
	}

	swapped, err := repo.CompareAndSwapBalance(ctx, account.ID, account.Version, balance)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, errVersionConflict
	}

	entry := &models.LedgerEntry{
		AccountID:    account.ID,
		Sequence:     account.Version + 1,
		Amount:       delta,
		Kind:         kind,
		BalanceAfter: balance,
		Reference:    reference,
		CreatedAt:    s.clock(),
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if s.outbox != nil {
		eventType := enums.EventLedgerCredited
		if entry.IsDebit() {
			eventType = enums.EventLedgerDebited
		}
		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateAccount,
			AggregateID:   account.ID,
			Actor:         &outbox.ActorRef{AccountID: account.ID, Source: "ledger"},
			OccurredAt:    entry.CreatedAt,
			Data: payloads.LedgerEntryEvent{
				EntryID:      entry.ID,
				AccountID:    entry.AccountID,
				Sequence:     entry.Sequence,
				Amount:       entry.Amount,
				Kind:         entry.Kind,
				BalanceAfter: entry.BalanceAfter,
				Reference:    entry.Reference,
				CreatedAt:    entry.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, fmt.Errorf("emit ledger event: %w", err)
		}
	}
	return entry, nil
}

func validateMutation(accountID uuid.UUID, amount int64, kind enums.LedgerKind) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive integer")
	}
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger kind %q", kind))
	}
	return nil
}
