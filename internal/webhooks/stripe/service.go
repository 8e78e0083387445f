package stripewebhook

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/mianhamzaathar/AIFORGE/internal/checkout"
	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

type planChanger interface {
	ChangePlan(ctx context.Context, id uuid.UUID, plan enums.PlanName) (*models.Account, error)
}

type ServiceParams struct {
	Ledger   ledger.Service
	Accounts planChanger
	Logger   *logger.Logger
}

// Service turns confirmed Stripe payments into ledger credits.
type Service struct {
	ledger   ledger.Service
	accounts planChanger
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts service required")
	}
	return &Service{
		ledger:   params.Ledger,
		accounts: params.Accounts,
		logg:     params.Logger,
	}, nil
}

// HandleEvent applies checkout.session.completed and
// checkout.session.async_payment_succeeded. Other events are acknowledged
// without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.applyPayment(ctx, &sess)
	default:
		return nil
	}
}

func (s *Service) applyPayment(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"session_id": sess.ID, "payment_status": sess.PaymentStatus})
			s.logg.Info(logCtx, "checkout session not paid yet")
		}
		return nil
	}

	purchase, err := purchaseFromMetadata(sess.Metadata)
	if err != nil {
		return err
	}

	result, err := s.ledger.Credit(ctx, ledger.CreditInput{
		AccountID: purchase.accountID,
		Amount:    purchase.tokens,
		Kind:      enums.LedgerKindPurchase,
		Reference: PaymentReference(sess.ID),
	})
	if err != nil {
		return err
	}

	if purchase.kind == enums.PurchasePlan {
		if _, err := s.accounts.ChangePlan(ctx, purchase.accountID, purchase.plan); err != nil {
			return err
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id":    purchase.accountID.String(),
			"session_id":    sess.ID,
			"tokens":        purchase.tokens,
			"purchase_type": purchase.kind,
			"duplicate":     result.Duplicate,
		})
		s.logg.Info(logCtx, "payment credited")
	}
	return nil
}

// PaymentReference is the ledger reference for a Checkout Session credit.
func PaymentReference(sessionID string) string {
	return "stripe:" + sessionID
}

type purchase struct {
	accountID uuid.UUID
	tokens    int64
	kind      enums.PurchaseType
	plan      enums.PlanName
}

func purchaseFromMetadata(metadata map[string]string) (purchase, error) {
	accountID, err := uuid.Parse(strings.TrimSpace(metadata[checkout.MetadataAccountID]))
	if err != nil {
		return purchase{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing account id")
	}
	tokens, err := strconv.ParseInt(strings.TrimSpace(metadata[checkout.MetadataTokens]), 10, 64)
	if err != nil || tokens <= 0 {
		return purchase{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has invalid token count")
	}

	kind := enums.PurchaseTokens
	if raw := strings.TrimSpace(metadata[checkout.MetadataPurchaseType]); raw != "" {
		kind, err = enums.ParsePurchaseType(raw)
		if err != nil {
			return purchase{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase type")
		}
	}

	out := purchase{accountID: accountID, tokens: tokens, kind: kind}
	if kind == enums.PurchasePlan {
		plan := enums.PlanName(strings.TrimSpace(metadata[checkout.MetadataPlan]))
		if !plan.IsPaid() {
			return purchase{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has invalid plan")
		}
		out.plan = plan
	}
	return out, nil
}
