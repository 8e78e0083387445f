package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	keys        map[string]time.Duration
	setNXError  error
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]time.Duration{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "aif:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.keys, k)
		f.lastDeleted = k
	}
	return nil
}

func TestManagerMarksEventsPerConsumer(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	if err != nil || already {
		t.Fatalf("first delivery should be new, already=%v err=%v", already, err)
	}
	key := "aif:idempotency:evt:processed:analytics:" + eventID.String()
	if ttl, ok := store.keys[key]; !ok || ttl != 24*time.Hour {
		t.Fatalf("expected key %q with 24h ttl, got %v", key, store.keys)
	}

	already, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	if err != nil || !already {
		t.Fatalf("redelivery should be detected, already=%v err=%v", already, err)
	}

	already, _ = manager.CheckAndMarkProcessed(ctx, "audit", eventID)
	if already {
		t.Fatal("consumers must not share claims")
	}

	if err := manager.Delete(ctx, "analytics", eventID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.lastDeleted != key {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
	if already, _ := manager.CheckAndMarkProcessed(ctx, "analytics", eventID); already {
		t.Fatal("deleted claim should allow reprocessing")
	}
}

func TestManagerRejectsMissingInput(t *testing.T) {
	manager, _ := NewManager(newFakeStore(), time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "analytics", uuid.Nil); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), " ", uuid.New()); !errors.Is(err, ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
}

func TestKeeperPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("boom")
	keeper, err := NewKeeper(store, time.Hour)
	if err != nil {
		t.Fatalf("NewKeeper: %v", err)
	}
	if _, err := keeper.Seen(context.Background(), "stripe-webhook", "evt_1"); !errors.Is(err, store.setNXError) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestNewKeeperValidation(t *testing.T) {
	if _, err := NewKeeper(nil, time.Hour); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := NewKeeper(newFakeStore(), -time.Second); err == nil {
		t.Fatal("expected ttl error")
	}
}
