package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/api/responses"
	"github.com/mianhamzaathar/AIFORGE/api/validators"
	"github.com/mianhamzaathar/AIFORGE/internal/checkout"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// CheckoutService opens Stripe Checkout sessions for purchases.
type CheckoutService interface {
	CreateTokenPurchase(ctx context.Context, accountID uuid.UUID, tokens int64) (*checkout.Session, error)
	CreatePlanPurchase(ctx context.Context, accountID uuid.UUID, plan enums.PlanName) (*checkout.Session, error)
}

type tokenPurchaseRequest struct {
	Tokens int64 `json:"tokens" validate:"required,gt=0"`
}

type planPurchaseRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free basic pro enterprise"`
}

// CheckoutTokens starts a token pack purchase. Tokens are credited by the
// payment webhook, not here.
func CheckoutTokens(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body tokenPurchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.CreateTokenPurchase(ctx, accountID, body.Tokens)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func CheckoutPlans(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body planPurchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.CreatePlanPurchase(ctx, accountID, enums.PlanName(body.Plan))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
