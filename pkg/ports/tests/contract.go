// Package tests provides reusable contract suites for ports implementations.
package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/ports"
)

// SessionStoreContract verifies that a store honors the ports.SessionStore
// semantics. Adapters call it from their own _test.go with a fresh store.
func SessionStoreContract(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		sess := domain.NewSession("s-1", "agent-a", domain.StateMap{
			"user_name": domain.String("Alice"),
		})
		if err := store.Put(ctx, sess); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := store.Get(ctx, "s-1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ID != "s-1" || got.AgentID != "agent-a" {
			t.Fatalf("record mangled: %+v", got)
		}
		name, ok := got.State["user_name"].AsString()
		if !ok || name != "Alice" {
			t.Fatalf("state lost: %+v", got.State)
		}
	})

	t.Run("PutIsolation", func(t *testing.T) {
		sess := domain.NewSession("s-iso", "agent-a", domain.StateMap{
			"n": domain.Int(1),
		})
		if err := store.Put(ctx, sess); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		// Mutating the caller's copy must not leak into the store.
		sess.State["n"] = domain.Int(2)
		sess.Stale = true

		got, err := store.Get(ctx, "s-iso")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		n, _ := got.State["n"].AsInt()
		if n != 1 || got.Stale {
			t.Fatalf("store shares memory with caller: %+v", got)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		sess := domain.NewSession("s-2", "agent-a", nil)
		if err := store.Put(ctx, sess); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		sess = sess.Clone()
		sess.Stale = true
		if err := store.Put(ctx, sess); err != nil {
			t.Fatalf("replace failed: %v", err)
		}
		got, err := store.Get(ctx, "s-2")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !got.Stale {
			t.Fatal("replacement did not stick")
		}
	})

	t.Run("List", func(t *testing.T) {
		all, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		ids := make(map[string]bool, len(all))
		for _, s := range all {
			ids[s.ID] = true
		}
		for _, want := range []string{"s-1", "s-2"} {
			if !ids[want] {
				t.Fatalf("list missing %s: %v", want, ids)
			}
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		if err := store.Delete(ctx, "s-1"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if err := store.Delete(ctx, "s-1"); err != nil {
			t.Fatalf("second delete must be silent, got %v", err)
		}
		if _, err := store.Get(ctx, "s-1"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
		}
	})
}
