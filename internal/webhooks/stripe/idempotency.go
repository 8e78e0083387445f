package stripewebhook

import (
	"context"
	"errors"
	"time"

	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/idempotency"
	"github.com/mianhamzaathar/AIFORGE/pkg/redis"
)

// IdempotencyGuard drops Stripe redeliveries by event id before they reach
// the ledger. The ledger reference index still guards the credit itself.
type IdempotencyGuard struct {
	keeper *idempotency.Keeper
	scope  string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	keeper, err := idempotency.NewKeeper(store, ttl)
	if err != nil {
		return nil, err
	}
	return &IdempotencyGuard{keeper: keeper, scope: scope}, nil
}

// CheckAndMark reports whether eventID was already seen and claims it otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.keeper.Seen(ctx, g.scope, eventID)
}

// Delete releases the claim so Stripe's retry is processed.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	return g.keeper.Forget(ctx, g.scope, eventID)
}
