package authcore

import (
	"context"
	"errors"

	"github.com/rescuelink/authcore/token"
)

// Refresh rotates a refresh token into a fresh pair. The principal is
// re-fetched and its permissions re-derived, so role changes and
// suspensions take effect at rotation time. The presented token is
// revoked before the new pair is minted; a replay fails with
// ErrTokenRevoked.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	pair, err := e.tokens.Refresh(ctx, refreshToken, func(ctx context.Context, principalID, kind string) (token.Identity, error) {
		rec, err := e.creds.FindPrincipalByID(ctx, principalID)
		if err != nil {
			if errors.Is(err, ErrPrincipalNotFound) {
				return token.Identity{}, ErrRefreshInvalid
			}
			return token.Identity{}, err
		}
		if rec.Kind != Kind(kind) {
			return token.Identity{}, ErrRefreshInvalid
		}
		if err := accountGate(rec); err != nil {
			return token.Identity{}, err
		}
		return identityFor(rec), nil
	})
	if err != nil {
		e.metrics.tokenRefresh(false)
		e.audit.Emit(ctx, AuditEvent{
			EventType: AuditTokenRefresh,
			Error:     err.Error(),
		})
		return nil, translateTokenErr(err)
	}

	e.metrics.tokenRefresh(true)
	e.audit.Emit(ctx, AuditEvent{EventType: AuditTokenRefresh, Success: true})
	return pair, nil
}

// Revoke blacklists a token for its remaining lifetime. Undecodable
// input reports false; an already-expired token reports true since
// there is nothing left to revoke.
func (e *Engine) Revoke(ctx context.Context, tokenStr string) bool {
	if e.ready() != nil {
		return false
	}
	ok := e.tokens.Revoke(ctx, tokenStr)
	if ok {
		e.metrics.tokenRevoke()
	}
	e.audit.Emit(ctx, AuditEvent{EventType: AuditTokenRevoke, Success: ok})
	return ok
}

// Validate verifies an access token and returns the identity embedded
// in it. No store lookup happens here: the claims are trusted for the
// token's lifetime, which is why access TTLs are short.
func (e *Engine) Validate(ctx context.Context, accessToken string) (UserContext, error) {
	if err := e.ready(); err != nil {
		return UserContext{}, err
	}

	claims, err := e.tokens.VerifyPurpose(ctx, accessToken, token.PurposeAccess)
	if err != nil {
		// A refresh token presented for validation is just an invalid
		// access token; don't hint at what it really was.
		if errors.Is(err, token.ErrWrongPurpose) {
			return UserContext{}, ErrTokenInvalid
		}
		return UserContext{}, translateTokenErr(err)
	}

	return UserContext{
		PrincipalID: claims.Subject,
		Kind:        Kind(claims.Kind),
		Email:       claims.Email,
		Permissions: claims.Permissions,
		FirmID:      claims.FirmID,
		Role:        claims.Role,
	}, nil
}

// translateTokenErr maps token-package sentinels onto the engine's
// error vocabulary. Engine-level sentinels pass through untouched.
func translateTokenErr(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrRevoked):
		return ErrTokenRevoked
	case errors.Is(err, token.ErrWrongPurpose):
		return ErrRefreshInvalid
	case errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}
