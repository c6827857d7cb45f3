package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGuard(t *testing.T, mutate func(*Config)) (*Guard, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := NewGuard(rdb, cfg, nil)
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}

	return g, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestLockoutThreshold(t *testing.T) {
	g, _, done := newTestGuard(t, nil)
	defer done()
	ctx := context.Background()
	const id = "x@y.com"

	for i := 1; i < g.MaxFailedAttempts(); i++ {
		state := g.RecordFailedLogin(ctx, id)
		if state.Locked {
			t.Fatalf("attempt %d: locked before threshold", i)
		}
		if state.Attempts != i {
			t.Fatalf("attempt %d: got attempts %d", i, state.Attempts)
		}
		if state.RemainingAttempts != g.MaxFailedAttempts()-i {
			t.Fatalf("attempt %d: got remaining %d", i, state.RemainingAttempts)
		}
	}
	if g.IsLocked(ctx, id) {
		t.Fatal("locked after max-1 attempts")
	}

	state := g.RecordFailedLogin(ctx, id)
	if !state.Locked {
		t.Fatal("threshold attempt did not lock")
	}
	if state.RemainingAttempts != 0 {
		t.Fatalf("expected remaining 0, got %d", state.RemainingAttempts)
	}
	if state.LockoutExpires.IsZero() {
		t.Fatal("expected a lockout expiry on the locking attempt")
	}
	if !g.IsLocked(ctx, id) {
		t.Fatal("IsLocked false after threshold")
	}
}

func TestClearFailedAttemptsIsIdempotent(t *testing.T) {
	g, _, done := newTestGuard(t, nil)
	defer done()
	ctx := context.Background()
	const id = "x@y.com"

	for i := 0; i < g.MaxFailedAttempts(); i++ {
		g.RecordFailedLogin(ctx, id)
	}
	if !g.IsLocked(ctx, id) {
		t.Fatal("expected locked")
	}

	if err := g.ClearFailedAttempts(ctx, id); err != nil {
		t.Fatalf("ClearFailedAttempts failed: %v", err)
	}
	if g.FailedAttempts(ctx, id) != 0 {
		t.Fatal("counter survived clear")
	}
	if g.IsLocked(ctx, id) {
		t.Fatal("lock flag survived clear")
	}

	// Clearing an already-clean identifier is a no-op.
	if err := g.ClearFailedAttempts(ctx, id); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
	if g.FailedAttempts(ctx, id) != 0 {
		t.Fatal("expected 0 after repeated clear")
	}
}

func TestCounterTTLResetsOnEveryIncrement(t *testing.T) {
	g, mr, done := newTestGuard(t, nil)
	defer done()
	ctx := context.Background()
	const id = "x@y.com"

	g.RecordFailedLogin(ctx, id)
	mr.FastForward(29 * time.Minute)
	// A second failure inside the window refreshes the TTL to the full
	// lockout duration.
	state := g.RecordFailedLogin(ctx, id)
	if state.Attempts != 2 {
		t.Fatalf("expected attempts 2, got %d", state.Attempts)
	}

	mr.FastForward(29 * time.Minute)
	if got := g.FailedAttempts(ctx, id); got != 2 {
		t.Fatalf("counter should survive 29m after refresh, got %d", got)
	}

	mr.FastForward(2 * time.Minute)
	if got := g.FailedAttempts(ctx, id); got != 0 {
		t.Fatalf("counter should expire after the full window, got %d", got)
	}
}

func TestLockExpiresNaturally(t *testing.T) {
	g, mr, done := newTestGuard(t, nil)
	defer done()
	ctx := context.Background()
	const id = "x@y.com"

	for i := 0; i < g.MaxFailedAttempts(); i++ {
		g.RecordFailedLogin(ctx, id)
	}
	if !g.IsLocked(ctx, id) {
		t.Fatal("expected locked")
	}
	if g.LockoutExpiry(ctx, id).IsZero() {
		t.Fatal("expected a lockout expiry while locked")
	}

	mr.FastForward(31 * time.Minute)
	if g.IsLocked(ctx, id) {
		t.Fatal("lock flag should lapse with its TTL")
	}
	if !g.LockoutExpiry(ctx, id).IsZero() {
		t.Fatal("expiry should be zero once unlocked")
	}
}

func TestFailedAttemptsDefaultsToZero(t *testing.T) {
	g, _, done := newTestGuard(t, nil)
	defer done()

	if got := g.FailedAttempts(context.Background(), "nobody@nowhere.com"); got != 0 {
		t.Fatalf("expected 0 for unknown identifier, got %d", got)
	}
}

func TestFailOpenOnStoreOutage(t *testing.T) {
	g, mr, done := newTestGuard(t, nil)
	defer done()
	ctx := context.Background()

	mr.Close()

	state := g.RecordFailedLogin(ctx, "x@y.com")
	if state.Locked {
		t.Fatal("fail-open recording must not report locked")
	}
	if state.Attempts != 1 || state.RemainingAttempts != g.MaxFailedAttempts()-1 {
		t.Fatalf("unexpected degraded state: %+v", state)
	}
	if g.IsLocked(ctx, "x@y.com") {
		t.Fatal("fail-open lock check must report not locked")
	}
}

func TestFailClosedOnStoreOutage(t *testing.T) {
	g, mr, done := newTestGuard(t, func(c *Config) { c.FailOpen = false })
	defer done()
	ctx := context.Background()

	mr.Close()

	state := g.RecordFailedLogin(ctx, "x@y.com")
	if !state.Locked {
		t.Fatal("fail-closed recording must report locked")
	}
	if !g.IsLocked(ctx, "x@y.com") {
		t.Fatal("fail-closed lock check must report locked")
	}
}
