package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/grove/pkg/adapters/redis"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/ports/tests"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestStoreContract(t *testing.T) {
	store, _ := newTestStore(t)
	tests.SessionStoreContract(t, store)
}

func TestStorePrefixIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	a := redis.NewFromClient(client, redis.WithPrefix("a:"))
	b := redis.NewFromClient(client, redis.WithPrefix("b:"))

	ctx := context.Background()
	if err := a.Put(ctx, domain.NewSession("s-1", "agent", nil)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if _, err := b.Get(ctx, "s-1"); err != domain.ErrSessionNotFound {
		t.Fatalf("prefixes must not share records, got %v", err)
	}
	got, err := a.Get(ctx, "s-1")
	if err != nil || got.ID != "s-1" {
		t.Fatalf("own prefix lookup failed: %v %v", got, err)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t, redis.WithTTL(time.Minute))
	ctx := context.Background()

	if err := store.Put(ctx, domain.NewSession("s-ttl", "agent", nil)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "s-ttl"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expired entries must be pruned from list, got %d", len(all))
	}
}
