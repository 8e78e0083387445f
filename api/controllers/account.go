package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/api/middleware"
	"github.com/mianhamzaathar/AIFORGE/api/responses"
	"github.com/mianhamzaathar/AIFORGE/api/validators"
	"github.com/mianhamzaathar/AIFORGE/internal/accounts"
	pkgAuth "github.com/mianhamzaathar/AIFORGE/pkg/auth"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

const tokenHeader = "X-AIForge-Token"

// AccountService describes the account operations used by the HTTP controllers.
type AccountService interface {
	Register(ctx context.Context, input accounts.RegisterInput) (*models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Dashboard(ctx context.Context, id uuid.UUID) (*accounts.Dashboard, error)
}

type registerResponse struct {
	Account     accountResponse `json:"account"`
	AccessToken string          `json:"access_token"`
}

type dashboardResponse struct {
	Account    accountResponse       `json:"account"`
	TotalUsed  int64                 `json:"total_used"`
	Recent     []ledgerEntryResponse `json:"recent"`
	UsageStats []accounts.KindStat   `json:"usage_stats"`
}

// AccountRegister opens an account with the seed grant and returns an access token for it.
func AccountRegister(svc AccountService, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		var body accounts.RegisterInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		body.Username = validators.SanitizeString(body.Username, 64)

		account, err := svc.Register(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		token, err := pkgAuth.MintAccessToken(jwtCfg, time.Now(), pkgAuth.AccessTokenPayload{
			AccountID: account.ID,
			Plan:      account.SubscriptionPlan,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token"))
			return
		}

		w.Header().Set(tokenHeader, token)
		responses.WriteSuccessStatus(w, http.StatusCreated, registerResponse{
			Account:     accountToResponse(account),
			AccessToken: token,
		})
	}
}

func AccountDashboard(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dash, err := svc.Dashboard(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stats := dash.UsageStats
		if stats == nil {
			stats = []accounts.KindStat{}
		}
		responses.WriteSuccess(w, dashboardResponse{
			Account: accountResponse{
				ID:         dash.AccountID.String(),
				Email:      dash.Email,
				Username:   dash.Username,
				Balance:    dash.Balance,
				Plan:       string(dash.Plan),
				PlanEndsAt: formatPlanEnd(dash.PlanEndsAt),
			},
			TotalUsed:  dash.TotalUsed,
			Recent:     entriesToResponse(dash.Recent),
			UsageStats: stats,
		})
	}
}

func requireAccount(r *http.Request) (uuid.UUID, error) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing")
	}
	return accountID, nil
}
