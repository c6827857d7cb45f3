package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestRefreshRotation(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")
	res, err := h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	pair, err := h.engine.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full rotated pair")
	}

	// The rotated access token validates.
	if _, err := h.engine.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("rotated access token invalid: %v", err)
	}

	// The consumed refresh token is dead.
	if _, err := h.engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")
	res, err := h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := h.engine.Refresh(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	rec := h.seedPersonnel(t, "agent@firm.com", "correct horse", "firm-1", RoleFieldAgent)
	res, err := h.engine.Login(ctx, KindFirmPersonnel, "agent@firm.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	rec.Role = RoleTeamLeader
	h.store.seed(rec)

	pair, err := h.engine.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	uc, err := h.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if uc.Role != RoleTeamLeader || !uc.HasPermission(PermRequestAssign) {
		t.Fatalf("role change not reflected after rotation: %+v", uc)
	}
}

func TestRefreshBlockedForSuspendedPrincipal(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	rec := h.seedUser(t, "a@b.com", "correct horse")
	res, err := h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	rec.Suspended = true
	h.store.seed(rec)

	if _, err := h.engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("expected ErrAccountSuspended, got %v", err)
	}
}

func TestRevokeAccessToken(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")
	res, err := h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if ok := h.engine.Revoke(ctx, res.Tokens.AccessToken); !ok {
		t.Fatal("Revoke failed for a live token")
	}
	if _, err := h.engine.Validate(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if ok := h.engine.Revoke(ctx, "garbage"); ok {
		t.Fatal("Revoke must refuse undecodable input")
	}
}

func TestValidateRejectsRefreshToken(t *testing.T) {
	h, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	h.seedUser(t, "a@b.com", "correct horse")
	res, err := h.engine.Login(ctx, KindRegisteredUser, "a@b.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := h.engine.Validate(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
