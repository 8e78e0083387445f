package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/pkg/db"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/payloads"
)

const (
	recentEntriesLimit = 10
	subscriptionPeriod = 30 * 24 * time.Hour
	emailIndex         = "ux_accounts_email"
	emailColumn        = "accounts.email"
)

// RegisterInput contains the payload required to open an account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=64"`
}

// Dashboard is the account overview: balance, plan, lifetime usage and the
// latest entries.
type Dashboard struct {
	AccountID  uuid.UUID            `json:"account_id"`
	Email      string               `json:"email"`
	Username   string               `json:"username"`
	Balance    int64                `json:"balance"`
	Plan       enums.PlanName       `json:"plan"`
	PlanEndsAt *time.Time           `json:"plan_ends_at,omitempty"`
	TotalUsed  int64                `json:"total_used"`
	Recent     []models.LedgerEntry `json:"recent"`
	UsageStats []KindStat           `json:"usage_stats"`
}

// Service manages accounts. Balances are only ever changed through the ledger.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Dashboard(ctx context.Context, id uuid.UUID) (*Dashboard, error)
	ChangePlan(ctx context.Context, id uuid.UUID, plan enums.PlanName) (*models.Account, error)
}

// ServiceParams packages the dependencies for the accounts service.
type ServiceParams struct {
	DB        *db.Client
	Ledger    ledger.Service
	Outbox    outbox.Emitter
	Logger    *logger.Logger
	SeedGrant int64
}

type service struct {
	db        *db.Client
	repo      *Repository
	ledger    ledger.Service
	outbox    outbox.Emitter
	logg      *logger.Logger
	seedGrant int64
	now       func() time.Time
}

// NewService builds an accounts service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.SeedGrant < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seed grant must not be negative")
	}
	return &service{
		db:        params.DB,
		repo:      NewRepository(params.DB.DB()),
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		logg:      params.Logger,
		seedGrant: params.SeedGrant,
		now:       time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}

	account := &models.Account{
		Email:            email,
		Username:         username,
		Balance:          s.seedGrant,
		InitialBalance:   s.seedGrant,
		SubscriptionPlan: enums.PlanFree,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		existing, err := repo.FindByEmail(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check account email")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}

		if err := repo.Create(ctx, account); err != nil {
			if db.IsUniqueViolation(err, emailIndex) || db.IsUniqueViolation(err, emailColumn) {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}

		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountCreated,
			AggregateType: enums.AggregateAccount,
			AggregateID:   account.ID,
			Actor:         &outbox.ActorRef{AccountID: account.ID, Source: "accounts"},
			Data: payloads.AccountCreatedEvent{
				AccountID:      account.ID,
				InitialBalance: account.InitialBalance,
				Plan:           account.SubscriptionPlan,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id":      account.ID.String(),
			"initial_balance": account.InitialBalance,
		})
		s.logg.Info(logCtx, "account registered")
	}
	return account, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return account, nil
}

func (s *service) Dashboard(ctx context.Context, id uuid.UUID) (*Dashboard, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	page, err := s.ledger.History(ctx, id, ledger.HistoryOptions{Limit: recentEntriesLimit})
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.DebitStats(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage stats")
	}
	if stats == nil {
		stats = []KindStat{}
	}

	var used int64
	for _, stat := range stats {
		used += stat.Tokens
	}

	return &Dashboard{
		AccountID:  account.ID,
		Email:      account.Email,
		Username:   account.Username,
		Balance:    account.Balance,
		Plan:       account.SubscriptionPlan,
		PlanEndsAt: account.SubscriptionEnd,
		TotalUsed:  used,
		Recent:     page.Entries,
		UsageStats: stats,
	}, nil
}

// ChangePlan records the subscription tier. A paid plan runs for one
// subscription period from now; the free plan never expires. Token grants for
// a plan are credited by the payment flow, not here.
func (s *service) ChangePlan(ctx context.Context, id uuid.UUID, plan enums.PlanName) (*models.Account, error) {
	if !plan.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	var end *time.Time
	if plan.IsPaid() {
		at := s.now().UTC().Add(subscriptionPeriod)
		end = &at
	}
	updated, err := s.repo.UpdatePlan(ctx, id, plan, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update plan")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return s.Get(ctx, id)
}
