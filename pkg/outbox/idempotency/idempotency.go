// Package idempotency remembers which message ids were already handled.
// Claims are Redis SETNX keys with a TTL: aif:idempotency:<scope>:<id>.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/pkg/redis"
)

var (
	ErrMissingScope = errors.New("idempotency scope is required")
	ErrMissingID    = errors.New("idempotency id is required")
)

// Keeper claims ids per scope. A zero TTL keeps claims forever.
type Keeper struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewKeeper(store redis.IdempotencyStore, ttl time.Duration) (*Keeper, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("idempotency ttl must be non-negative, got %s", ttl)
	}
	return &Keeper{store: store, ttl: ttl}, nil
}

// Seen claims id in scope and reports whether an earlier claim already existed.
func (k *Keeper) Seen(ctx context.Context, scope, id string) (bool, error) {
	key, err := k.key(scope, id)
	if err != nil {
		return false, err
	}
	claimed, err := k.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), k.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !claimed, nil
}

// Forget drops a claim so the id can be handled again, e.g. after a failure.
func (k *Keeper) Forget(ctx context.Context, scope, id string) error {
	key, err := k.key(scope, id)
	if err != nil {
		return err
	}
	return k.store.Del(ctx, key)
}

func (k *Keeper) key(scope, id string) (string, error) {
	scope, id = strings.TrimSpace(scope), strings.TrimSpace(id)
	switch {
	case scope == "":
		return "", ErrMissingScope
	case id == "":
		return "", ErrMissingID
	}
	return k.store.IdempotencyKey(scope, id), nil
}

// Manager tracks processed Pub/Sub event ids per consumer.
type Manager struct {
	keeper *Keeper
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	keeper, err := NewKeeper(store, ttl)
	if err != nil {
		return nil, err
	}
	return &Manager{keeper: keeper}, nil
}

// CheckAndMarkProcessed returns true when consumer already handled eventID.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, ErrMissingID
	}
	return m.keeper.Seen(ctx, processedScope(consumer), eventID.String())
}

func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return ErrMissingID
	}
	return m.keeper.Forget(ctx, processedScope(consumer), eventID.String())
}

func processedScope(consumer string) string {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return ""
	}
	return "evt:processed:" + consumer
}
