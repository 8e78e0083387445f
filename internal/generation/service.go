package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// Outcome is returned for a successful paid call.
type Outcome struct {
	Operation ledger.Operation `json:"operation"`
	Charged   int64            `json:"charged"`
	Balance   int64            `json:"balance"`
	EntryID   uuid.UUID        `json:"entry_id"`
	Output    json.RawMessage  `json:"output"`
}

// Service runs paid AI calls: charge first, generate, refund on failure.
type Service interface {
	Run(ctx context.Context, accountID uuid.UUID, op ledger.Operation, input map[string]string) (*Outcome, error)
}

type service struct {
	ledger    ledger.Service
	generator Generator
	logg      *logger.Logger
}

// NewService wires the gateway. A nil generator is allowed; calls then fail
// before any tokens are charged.
func NewService(ledgerSvc ledger.Service, generator Generator, logg *logger.Logger) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{ledger: ledgerSvc, generator: generator, logg: logg}, nil
}

func (s *service) Run(ctx context.Context, accountID uuid.UUID, op ledger.Operation, input map[string]string) (*Outcome, error) {
	normalized, err := NormalizeInput(op, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if s.generator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "generation backend not configured")
	}

	charge, err := s.ledger.Charge(ctx, accountID, op)
	if err != nil {
		return nil, err
	}
	if !charge.Applied {
		price, _ := s.ledger.Costs().Price(op)
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient token balance").WithDetails(map[string]any{
			"balance":  charge.Balance,
			"required": price.Tokens,
		})
	}

	result, genErr := s.generator.Generate(ctx, Request{Operation: op, Input: normalized})
	if genErr == nil {
		return &Outcome{
			Operation: op,
			Charged:   -charge.Entry.Amount,
			Balance:   charge.Balance,
			EntryID:   charge.Entry.ID,
			Output:    result.Output,
		}, nil
	}

	refundErr := s.refund(ctx, accountID, charge)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": accountID.String(),
			"operation":  op,
			"entry_id":   charge.Entry.ID.String(),
		})
		s.logg.Error(logCtx, "generation failed", multierr.Append(genErr, refundErr))
	}
	if refundErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, multierr.Append(genErr, refundErr), "generation failed and refund did not complete")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, genErr, "generation failed, tokens refunded")
}

// refund credits the charged tokens back, keyed by the debit entry so a
// retried refund is applied once.
func (s *service) refund(ctx context.Context, accountID uuid.UUID, charge ledger.DebitResult) error {
	// context may already be cancelled by the failed upstream call
	refundCtx := context.WithoutCancel(ctx)
	_, err := s.ledger.Credit(refundCtx, ledger.CreditInput{
		AccountID: accountID,
		Amount:    -charge.Entry.Amount,
		Kind:      enums.LedgerKindRefund,
		Reference: RefundReference(charge.Entry.ID),
	})
	return err
}

// RefundReference is the ledger reference of the refund for a debit entry.
func RefundReference(entryID uuid.UUID) string {
	return "refund:" + entryID.String()
}
