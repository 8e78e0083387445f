package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/mianhamzaathar/AIFORGE/pkg/stripe"
)

// SessionClient exposes the subset of Stripe Checkout used for purchases.
type SessionClient interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type sessionClientWrapper struct{}

// NewSessionClient wraps the configured Stripe client so the checkout service can be tested.
func NewSessionClient(api *pkgstripe.Client) SessionClient {
	if api == nil {
		return nil
	}
	return &sessionClientWrapper{}
}

func (w *sessionClientWrapper) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
