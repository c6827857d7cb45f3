package authcore

import "errors"

var (
	// ErrInvalidCredentials covers unknown identifiers, wrong passwords,
	// and kind mismatches alike, so a caller cannot tell which it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a live lockout flag exists.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for deactivated firm personnel.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountUnverified is returned for registered users who have not
	// completed identity verification.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountSuspended is returned for administratively suspended
	// principals.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountNotLocked is returned when an unlock code is requested
	// for an account that is not locked.
	ErrAccountNotLocked = errors.New("account not locked")
	// ErrOTPInvalid is returned when a one-time code is wrong, expired,
	// already consumed, or was never issued.
	ErrOTPInvalid = errors.New("one-time code invalid or expired")
	// ErrPrincipalNotFound is the CredentialStore's miss sentinel.
	// Engine methods translate it before it reaches callers.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrTokenInvalid is returned for malformed or tampered tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for explicitly revoked tokens.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrRefreshInvalid is returned when a token of the wrong purpose is
	// presented to the refresh or revocation paths.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrDeliveryFailed is returned when a one-time code could not be
	// handed to the delivery gateway.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrEngineNotReady is returned by methods on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
