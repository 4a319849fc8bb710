package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCreateGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("err=%v want ErrStateNotFound", err)
	}

	s := New("user-1", time.Now())
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, s); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err=%v want ErrAlreadyExists", err)
	}

	got, err := store.Get(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("user=%q", got.UserID)
	}
}

func TestMemoryStoreEvictExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	stale := New("user-1", base.Add(-time.Hour))
	fresh := New("user-2", base)
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := store.EvictExpired(ctx, 30*time.Minute, base)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if n != 1 {
		t.Fatalf("evicted=%d want 1", n)
	}
	if _, err := store.Get(ctx, stale.SessionID); !errors.Is(err, ErrStateNotFound) {
		t.Fatal("stale session should be gone")
	}
	if _, err := store.Get(ctx, fresh.SessionID); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
}

func TestMemoryStoreEvictSkipsHeldSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	stale := New("user-1", base.Add(-time.Hour))
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("create: %v", err)
	}

	release := store.Acquire(stale.SessionID)
	n, err := store.EvictExpired(ctx, 30*time.Minute, base)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if n != 0 {
		t.Fatalf("evicted=%d want 0 while lock is held", n)
	}
	release()

	n, err = store.EvictExpired(ctx, 30*time.Minute, base)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if n != 1 {
		t.Fatalf("evicted=%d want 1 after release", n)
	}
}

func TestAcquireSerializesTurns(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	release := store.Acquire("sess-1")

	done := make(chan struct{})
	go func() {
		r := store.Acquire("sess-1")
		r()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquire should block while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquire should proceed after release")
	}
}
