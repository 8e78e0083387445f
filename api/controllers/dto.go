package controllers

import (
	"time"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
)

type ledgerEntryResponse struct {
	ID           string  `json:"id"`
	Sequence     int64   `json:"sequence"`
	Amount       int64   `json:"amount"`
	Kind         string  `json:"kind"`
	BalanceAfter int64   `json:"balance_after"`
	Reference    *string `json:"reference,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func entryToResponse(entry models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:           entry.ID.String(),
		Sequence:     entry.Sequence,
		Amount:       entry.Amount,
		Kind:         string(entry.Kind),
		BalanceAfter: entry.BalanceAfter,
		Reference:    entry.Reference,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func entriesToResponse(entries []models.LedgerEntry) []ledgerEntryResponse {
	result := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entryToResponse(entry))
	}
	return result
}

type accountResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Balance    int64  `json:"balance"`
	Plan       string `json:"plan"`
	PlanEndsAt string `json:"plan_ends_at,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func formatPlanEnd(end *time.Time) string {
	if end == nil {
		return ""
	}
	return end.UTC().Format(time.RFC3339)
}

func accountToResponse(account *models.Account) accountResponse {
	return accountResponse{
		ID:         account.ID.String(),
		Email:      account.Email,
		Username:   account.Username,
		Balance:    account.Balance,
		Plan:       string(account.SubscriptionPlan),
		PlanEndsAt: formatPlanEnd(account.SubscriptionEnd),
		CreatedAt:  account.CreatedAt.UTC().Format(time.RFC3339),
	}
}
