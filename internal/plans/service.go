package plans

import (
	"context"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
)

type repository interface {
	ListActive(ctx context.Context) ([]models.Plan, error)
	FindByName(ctx context.Context, name enums.PlanName) (*models.Plan, error)
}

// Service exposes the plan catalog.
type Service interface {
	List(ctx context.Context) ([]models.Plan, error)
	Get(ctx context.Context, name enums.PlanName) (*models.Plan, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	return plans, nil
}

// Get returns an active plan by name.
func (s *service) Get(ctx context.Context, name enums.PlanName) (*models.Plan, error) {
	if !name.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan")
	}
	plan, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil || !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}
