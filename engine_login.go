package authcore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rescuelink/authcore/token"
)

// Login authenticates an identifier/password pair for the requested
// principal kind and returns a fresh token pair.
//
// Checks run in a fixed order: lockout first, so a locked account is
// reported as locked even when the password is wrong; then lookup and
// password verification, which fail identically so callers cannot
// probe for account existence; then the kind-specific account gates.
// Gate failures (inactive, unverified, suspended) do not count as
// failed login attempts; the password was correct.
func (e *Engine) Login(ctx context.Context, kind Kind, identifier, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if e.guard.IsLocked(ctx, identifier) {
		e.metrics.loginAttempt(kind, "locked")
		e.emitLogin(ctx, AuditLoginLockout, PrincipalRecord{}, ErrAccountLocked)
		return nil, &FailedLoginError{
			Locked:         true,
			LockoutExpires: e.guard.LockoutExpiry(ctx, identifier),
		}
	}

	rec, err := e.creds.FindPrincipal(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// Unknown identifiers still consume an attempt, so the
			// counter cannot be used to confirm account existence.
			return nil, e.recordFailure(ctx, kind, identifier, PrincipalRecord{})
		}
		e.log.Error("principal lookup failed", zap.Error(err))
		return nil, err
	}

	ok, err := e.hasher.Verify(pass, rec.PasswordHash)
	if err != nil {
		e.log.Error("password verify failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok || rec.Kind != kind {
		return nil, e.recordFailure(ctx, kind, identifier, rec)
	}

	if err := accountGate(rec); err != nil {
		e.metrics.loginAttempt(kind, "gated")
		e.emitLogin(ctx, AuditLoginFailure, rec, err)
		return nil, err
	}

	if err := e.guard.ClearFailedAttempts(ctx, identifier); err != nil {
		// Stale attempts only shrink the window for real attackers;
		// never fail a correct login over them.
		e.log.Warn("failed-attempt clear failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
	}

	e.maybeUpgradeHash(ctx, rec, pass)

	identity := identityFor(rec)
	pair, err := e.tokens.CreatePair(identity)
	if err != nil {
		e.log.Error("token mint failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
		return nil, err
	}

	e.metrics.loginAttempt(kind, "success")
	e.emitLogin(ctx, AuditLoginSuccess, rec, nil)

	return &LoginResult{
		Tokens: *pair,
		User:   userContextFor(rec, identity.Permissions),
	}, nil
}

// recordFailure counts a failed attempt and converts the resulting
// lockout state into the caller-visible error.
func (e *Engine) recordFailure(ctx context.Context, kind Kind, identifier string, rec PrincipalRecord) error {
	state := e.guard.RecordFailedLogin(ctx, identifier)

	ferr := &FailedLoginError{
		Locked:            state.Locked,
		RemainingAttempts: state.RemainingAttempts,
		LockoutExpires:    state.LockoutExpires,
	}
	if state.Locked {
		e.metrics.lockout()
		e.metrics.loginAttempt(kind, "locked")
		e.emitLogin(ctx, AuditLoginLockout, rec, ErrAccountLocked)
	} else {
		e.metrics.loginAttempt(kind, "failure")
		e.emitLogin(ctx, AuditLoginFailure, rec, ErrInvalidCredentials)
	}
	return ferr
}

// accountGate applies the kind-specific account-state checks that run
// after password verification.
func accountGate(rec PrincipalRecord) error {
	if rec.Suspended {
		return ErrAccountSuspended
	}
	switch rec.Kind {
	case KindRegisteredUser:
		if !rec.Verified {
			return ErrAccountUnverified
		}
	case KindFirmPersonnel:
		if !rec.Active {
			return ErrAccountInactive
		}
	}
	return nil
}

// maybeUpgradeHash rewrites legacy or under-parameterized hashes with
// the current argon2id parameters while the plaintext is in hand.
func (e *Engine) maybeUpgradeHash(ctx context.Context, rec PrincipalRecord, pass string) {
	needs, err := e.hasher.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.creds.UpdatePasswordHash(ctx, rec.ID, newHash); err != nil {
		e.log.Warn("hash upgrade write failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
		return
	}
	e.log.Info("password hash upgraded", zap.String("principal_id", rec.ID))
}

func identityFor(rec PrincipalRecord) token.Identity {
	return token.Identity{
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		Email:       rec.Email,
		Permissions: PermissionsFor(rec.Kind, rec.Role),
		FirmID:      rec.FirmID,
		Role:        rec.Role,
	}
}

func userContextFor(rec PrincipalRecord, perms []string) UserContext {
	return UserContext{
		PrincipalID: rec.ID,
		Kind:        rec.Kind,
		Email:       rec.Email,
		Permissions: perms,
		FirmID:      rec.FirmID,
		Role:        rec.Role,
	}
}

func (e *Engine) emitLogin(ctx context.Context, eventType string, rec PrincipalRecord, failure error) {
	event := AuditEvent{
		EventType:   eventType,
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		FirmID:      rec.FirmID,
		Success:     failure == nil,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	e.audit.Emit(ctx, event)
}
