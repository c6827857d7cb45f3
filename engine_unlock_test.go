package authcore

import (
	"context"
	"errors"
	"testing"
)

func lockAccount(t *testing.T, h *testHarness, identifier string) {
	t.Helper()
	for i := 0; i < 5; i++ {
		_, _ = h.engine.Login(context.Background(), KindRegisteredUser, identifier, "wrong")
	}
	status, err := h.engine.Status(context.Background(), identifier)
	if err != nil || !status.IsLocked {
		t.Fatalf("failed to lock %s: %v %+v", identifier, err, status)
	}
}

func TestUnlockFlow(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")
	lockAccount(t, h, "a@b.com")

	out, err := h.engine.RequestUnlockOTP(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("RequestUnlockOTP failed: %v", err)
	}
	if !out.Success {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	sent := h.gateway.last(t)
	if sent.Identifier != "a@b.com" || len(sent.Code) != 6 {
		t.Fatalf("unexpected delivery: %+v", sent)
	}

	if _, err := h.engine.ConfirmUnlockOTP(ctx, "a@b.com", sent.Code); err != nil {
		t.Fatalf("ConfirmUnlockOTP failed: %v", err)
	}

	// Unlocked and counter cleared: login works again immediately.
	if _, err := h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "correct horse"); err != nil {
		t.Fatalf("login after unlock failed: %v", err)
	}
}

func TestUnlockRequestRequiresLock(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()

	h.seedUser(t, "a@b.com", "correct horse")

	_, err := h.engine.RequestUnlockOTP(context.Background(), "a@b.com")
	if !errors.Is(err, ErrAccountNotLocked) {
		t.Fatalf("expected ErrAccountNotLocked, got %v", err)
	}
}

func TestUnlockConfirmRejectsWrongCode(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")
	lockAccount(t, h, "a@b.com")

	if _, err := h.engine.RequestUnlockOTP(ctx, "a@b.com"); err != nil {
		t.Fatalf("RequestUnlockOTP failed: %v", err)
	}

	wrong := "000000"
	if h.gateway.last(t).Code == wrong {
		wrong = "000001"
	}
	if _, err := h.engine.ConfirmUnlockOTP(ctx, "a@b.com", wrong); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}

	// The account stays locked after a failed confirm.
	status, err := h.engine.Status(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.IsLocked {
		t.Fatal("account unlocked by a wrong code")
	}
}

func TestStatusReportsLockoutPosition(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")

	status, err := h.engine.Status(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.IsLocked || status.FailedAttempts != 0 || status.RemainingAttempts != 5 {
		t.Fatalf("unexpected clean status: %+v", status)
	}

	_, _ = h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "wrong")
	_, _ = h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "wrong")

	status, err = h.engine.Status(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.FailedAttempts != 2 || status.RemainingAttempts != 3 {
		t.Fatalf("unexpected mid-flight status: %+v", status)
	}

	lockAccount(t, h, "a@b.com")
	status, err = h.engine.Status(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.IsLocked || status.RemainingAttempts != 0 || status.LockoutExpires.IsZero() {
		t.Fatalf("unexpected locked status: %+v", status)
	}
}
