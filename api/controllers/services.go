package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/api/responses"
	"github.com/mianhamzaathar/AIFORGE/api/validators"
	"github.com/mianhamzaathar/AIFORGE/internal/generation"
	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// GenerationService runs a paid AI call for an account.
type GenerationService interface {
	Run(ctx context.Context, accountID uuid.UUID, op ledger.Operation, input map[string]string) (*generation.Outcome, error)
}

// PriceList exposes the configured per-operation prices.
type PriceList interface {
	Costs() ledger.CostTable
}

type serviceCallRequest struct {
	Input map[string]string `json:"input"`
}

// ServiceCall charges the operation's price and returns the generated output.
// A refused charge surfaces as 402 INSUFFICIENT_BALANCE.
func ServiceCall(svc GenerationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		op, err := ledger.ParseOperation(strings.TrimSpace(chi.URLParam(r, "operation")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown service"))
			return
		}

		var body serviceCallRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := svc.Run(ctx, accountID, op, body.Input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// ServicePrices lists the price of every paid operation.
func ServicePrices(svc PriceList, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"prices": svc.Costs().Prices()})
	}
}
