package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/api/responses"
	"github.com/mianhamzaathar/AIFORGE/api/validators"
	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/pagination"
	"github.com/mianhamzaathar/AIFORGE/pkg/types"
)

// LedgerReader is the read side of the ledger exposed over HTTP.
type LedgerReader interface {
	History(ctx context.Context, accountID uuid.UUID, opts ledger.HistoryOptions) (ledger.HistoryPage, error)
	UsageSummary(ctx context.Context, accountID uuid.UUID, since *time.Time) (ledger.Usage, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (ledger.ReconcileReport, error)
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Plan      string `json:"plan"`
}

type historyResponse struct {
	Entries []ledgerEntryResponse `json:"entries"`
}

type usageResponse struct {
	Usage ledger.Usage `json:"usage"`
	Total int64        `json:"total"`
	Since string       `json:"since,omitempty"`
}

func LedgerBalance(svc AccountService, logg *logger.Logger) http.HandlerFunc {
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

		account, err := svc.Get(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{
			AccountID: account.ID.String(),
			Balance:   account.Balance,
			Plan:      string(account.SubscriptionPlan),
		})
	}
}

// LedgerHistory pages entries newest first.
func LedgerHistory(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		query := validators.QueryOf(r)
		limit, err := query.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		since, err := query.Time("since")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.History(ctx, accountID, ledger.HistoryOptions{
			Limit:  limit,
			Cursor: query.String("cursor"),
			Since:  since,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WritePage(w, historyResponse{Entries: entriesToResponse(page.Entries)}, types.PageMeta{
			Limit:      limit,
			Count:      len(page.Entries),
			NextCursor: page.NextCursor,
		})
	}
}

func LedgerUsage(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		since, err := validators.QueryOf(r).Time("since")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		usage, err := svc.UsageSummary(ctx, accountID, since)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if usage == nil {
			usage = ledger.Usage{}
		}

		resp := usageResponse{Usage: usage}
		for _, total := range usage {
			resp.Total += total
		}
		if since != nil {
			resp.Since = since.Format(time.RFC3339)
		}
		responses.WriteSuccess(w, resp)
	}
}

// LedgerReconcile replays the caller's entries and reports drift.
func LedgerReconcile(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := svc.Reconcile(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
