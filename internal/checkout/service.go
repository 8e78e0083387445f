package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/mianhamzaathar/AIFORGE/internal/plans"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// Metadata keys stamped on every Checkout Session and read back by the
// payment webhook.
const (
	MetadataAccountID    = "account_id"
	MetadataTokens       = "tokens"
	MetadataPurchaseType = "purchase_type"
	MetadataPlan         = "plan"
)

// Session is the client-facing view of a created Checkout Session.
type Session struct {
	ID           string             `json:"id"`
	URL          string             `json:"url"`
	PurchaseType enums.PurchaseType `json:"purchase_type"`
	Tokens       int64              `json:"tokens"`
	Plan         enums.PlanName     `json:"plan,omitempty"`
	Amount       decimal.Decimal    `json:"amount"`
	Currency     string             `json:"currency"`
}

// Service creates payment sessions. Tokens are credited only when the
// webhook confirms payment.
type Service interface {
	CreateTokenPurchase(ctx context.Context, accountID uuid.UUID, tokens int64) (*Session, error)
	CreatePlanPurchase(ctx context.Context, accountID uuid.UUID, plan enums.PlanName) (*Session, error)
}

type ServiceParams struct {
	Plans  plans.Service
	Stripe SessionClient
	Config config.StripeConfig
	Logger *logger.Logger
}

type service struct {
	plans  plans.Service
	stripe SessionClient
	cfg    config.StripeConfig
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe session client required")
	}
	if params.Config.TokensPerDollar <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tokens per dollar must be positive")
	}
	return &service{
		plans:  params.Plans,
		stripe: params.Stripe,
		cfg:    params.Config,
		logg:   params.Logger,
	}, nil
}

func (s *service) CreateTokenPurchase(ctx context.Context, accountID uuid.UUID, tokens int64) (*Session, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	price, err := TokenPrice(tokens, s.cfg.TokensPerDollar)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	lineItem := &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount: stripe.Int64(Cents(price)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(fmt.Sprintf("%d AIForge tokens", tokens)),
			},
		},
	}
	metadata := map[string]string{
		MetadataAccountID:    accountID.String(),
		MetadataTokens:       strconv.FormatInt(tokens, 10),
		MetadataPurchaseType: string(enums.PurchaseTokens),
	}

	out := &Session{PurchaseType: enums.PurchaseTokens, Tokens: tokens, Amount: price, Currency: string(stripe.CurrencyUSD)}
	return s.create(ctx, accountID, lineItem, metadata, out)
}

func (s *service) CreatePlanPurchase(ctx context.Context, accountID uuid.UUID, name enums.PlanName) (*Session, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	plan, err := s.plans.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free plan does not require checkout")
	}

	lineItem := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if plan.StripePriceID != nil && strings.TrimSpace(*plan.StripePriceID) != "" {
		lineItem.Price = stripe.String(*plan.StripePriceID)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount: stripe.Int64(Cents(plan.Price)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(fmt.Sprintf("AIForge %s plan", plan.Name)),
			},
		}
	}
	metadata := map[string]string{
		MetadataAccountID:    accountID.String(),
		MetadataTokens:       strconv.FormatInt(plan.Tokens, 10),
		MetadataPurchaseType: string(enums.PurchasePlan),
		MetadataPlan:         string(plan.Name),
	}

	out := &Session{
		PurchaseType: enums.PurchasePlan,
		Tokens:       plan.Tokens,
		Plan:         plan.Name,
		Amount:       plan.Price,
		Currency:     string(stripe.CurrencyUSD),
	}
	return s.create(ctx, accountID, lineItem, metadata, out)
}

func (s *service) create(ctx context.Context, accountID uuid.UUID, lineItem *stripe.CheckoutSessionLineItemParams, metadata map[string]string, out *Session) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(accountID.String()),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{lineItem},
	}
	params.Metadata = metadata

	sess, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	out.ID = sess.ID
	out.URL = sess.URL

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id":    accountID.String(),
			"session_id":    sess.ID,
			"purchase_type": out.PurchaseType,
			"tokens":        out.Tokens,
		})
		s.logg.Info(logCtx, "checkout session created")
	}
	return out, nil
}
