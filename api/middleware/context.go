package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxPlan      contextKey = "plan"
)

// AccountIDFromContext returns the authenticated account, or uuid.Nil.
func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxAccountID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func PlanFromContext(ctx context.Context) enums.PlanName {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxPlan).(enums.PlanName); ok {
		return v
	}
	return ""
}

// WithAccountID injects the account identifier into the context.
func WithAccountID(ctx context.Context, accountID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountID, accountID)
}
