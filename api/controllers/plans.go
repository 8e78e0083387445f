package controllers

import (
	"context"
	"net/http"

	"github.com/mianhamzaathar/AIFORGE/api/responses"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// PlanCatalog lists the purchasable plans.
type PlanCatalog interface {
	List(ctx context.Context) ([]models.Plan, error)
}

type planResponse struct {
	Name       string   `json:"name"`
	Price      string   `json:"price"`
	PriceCents int64    `json:"price_cents"`
	Tokens     int64    `json:"tokens"`
	Features   []string `json:"features"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

func PlansList(svc PlanCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(plans)})
	}
}

func plansToResponse(plans []models.Plan) []planResponse {
	result := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		features := make([]string, len(plan.Features))
		copy(features, plan.Features)
		result = append(result, planResponse{
			Name:       string(plan.Name),
			Price:      plan.Price.StringFixed(2),
			PriceCents: plan.Price.Shift(2).IntPart(),
			Tokens:     plan.Tokens,
			Features:   features,
		})
	}
	return result
}
