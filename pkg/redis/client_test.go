package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
)

func TestIncrWithTTLSetsWindowOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	client := NewWithStore(fake)
	key := client.RateLimitKey("account:42")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
	if fake.ttls[key] != time.Minute {
		t.Fatalf("expected one minute window, got %v", fake.ttls[key])
	}
	if fake.ttlWrites != 1 {
		t.Fatalf("window should be set once, set %d times", fake.ttlWrites)
	}
}

func TestIncrWithTTLReportsExpireFailure(t *testing.T) {
	fake := newFakeRedis()
	fake.expireErr = errors.New("read only replica")
	count, err := NewWithStore(fake).IncrWithTTL(context.Background(), "k", time.Second)
	if err == nil || count != 1 {
		t.Fatalf("expected count 1 with error, got %d %v", count, err)
	}
}

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client := NewWithStore(newFakeRedis())
	key := client.IdempotencyKey("stripe", "evt_1")

	if won, err := client.SetNX(ctx, key, "1", time.Hour); err != nil || !won {
		t.Fatalf("first SetNX should win, got %v %v", won, err)
	}
	if won, err := client.SetNX(ctx, key, "2", time.Hour); err != nil || won {
		t.Fatalf("second SetNX should lose, got %v %v", won, err)
	}
	if v, err := client.Get(ctx, key); err != nil || v != "1" {
		t.Fatalf("expected first value, got %q %v", v, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	c := &Client{}
	cases := map[string]string{
		c.IdempotencyKey("scope", "id"):     "aif:idempotency:scope:id",
		c.IdempotencyKey("scope", " "):      "aif:idempotency:scope",
		c.RateLimitKey("register"):          "aif:rate_limit:register",
		c.LockKey("cron-worker:production"): "aif:lock:cron-worker:production",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestZeroClient(t *testing.T) {
	c := &Client{}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := c.IncrWithTTL(context.Background(), "k", time.Second); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOptions(t *testing.T) {
	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/2", DB: 5, PoolSize: 7})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("url db should win and pool fill in, got db=%d pool=%d", opts.DB, opts.PoolSize)
	}

	opts, err = options(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type fakeRedis struct {
	data      map[string]string
	counters  map[string]int64
	ttls      map[string]time.Duration
	ttlWrites int
	expireErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:     map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeRedis) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	if _, ok := f.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = ttl
	f.ttlWrites++
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
