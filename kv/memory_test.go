package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miladsoleymani/dispatchmux/kv"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()

	if _, err := m.Get(ctx, "absent"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "counter")
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("Incr = %d, want %d", n, want)
		}
	}

	// Incr works on a value written by Set.
	if err := m.Set(ctx, "seeded", "41"); err != nil {
		t.Fatal(err)
	}
	if n, err := m.Incr(ctx, "seeded"); err != nil || n != 42 {
		t.Errorf("Incr seeded = %d, %v", n, err)
	}
}

func TestMemoryExpire(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()

	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := m.Expire(ctx, "k", time.Hour); err != nil {
		t.Fatal(err)
	}
	ttl, ok := m.TTL("k")
	if !ok || ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, %v", ttl, ok)
	}

	// An already elapsed ttl evicts on next access.
	if err := m.Expire(ctx, "k", -time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("expired key err = %v, want ErrNotFound", err)
	}

	// Expiring an absent key is a no-op.
	if err := m.Expire(ctx, "absent", time.Hour); err != nil {
		t.Fatal(err)
	}
}

func TestMemorySetClearsExpiry(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory()

	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := m.Expire(ctx, "k", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.TTL("k"); ok {
		t.Error("Set should clear the expiry")
	}
}

func TestKey(t *testing.T) {
	if got := kv.Key("dispatcher", "message", "m1"); got != "dispatcher:message:m1" {
		t.Errorf("Key = %q", got)
	}
	if got := kv.Key("solo"); got != "solo" {
		t.Errorf("Key = %q", got)
	}
}
