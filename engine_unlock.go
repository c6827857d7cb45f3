package authcore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rescuelink/authcore/delivery"
	"github.com/rescuelink/authcore/security"
)

// RequestUnlockOTP issues an unlock code for a locked account. Unlike
// the other code flows this one is not success-shaped for unknown
// identifiers: it only runs against accounts the caller already knows
// are locked, and ErrAccountNotLocked is the useful answer otherwise.
func (e *Engine) RequestUnlockOTP(ctx context.Context, identifier string) (OTPOutcome, error) {
	if err := e.ready(); err != nil {
		return OTPOutcome{}, err
	}

	if !e.guard.IsLocked(ctx, identifier) {
		return OTPOutcome{}, ErrAccountNotLocked
	}

	rec, err := e.creds.FindPrincipal(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// Locked state exists for an identifier with no account;
			// answer as if the code went out.
			return e.sentOutcome(), nil
		}
		return OTPOutcome{}, err
	}

	code, err := e.guard.GenerateUnlockOTP(ctx, identifier)
	if err != nil {
		return OTPOutcome{}, err
	}
	if err := e.deliver(ctx, rec, code); err != nil {
		return OTPOutcome{}, err
	}

	e.metrics.otpIssue(string(security.OTPUnlock))
	e.audit.Emit(ctx, AuditEvent{
		EventType:   AuditUnlockRequest,
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		FirmID:      rec.FirmID,
		Success:     true,
	})
	return e.sentOutcome(), nil
}

// ConfirmUnlockOTP consumes an unlock code. Success clears the lockout
// counter and flag, so the next login starts from a clean slate.
func (e *Engine) ConfirmUnlockOTP(ctx context.Context, identifier, code string) (OTPOutcome, error) {
	if err := e.ready(); err != nil {
		return OTPOutcome{}, err
	}

	ok := e.guard.VerifyUnlockOTP(ctx, identifier, code)
	e.metrics.otpConfirm(string(security.OTPUnlock), ok)
	e.audit.Emit(ctx, AuditEvent{EventType: AuditUnlockConfirm, Success: ok})
	if !ok {
		return OTPOutcome{}, ErrOTPInvalid
	}

	return OTPOutcome{Success: true, Message: "Account unlocked."}, nil
}

// Status reports an identifier's lockout position. Intended for
// support tooling and the account-status endpoint, not for login
// gating, which the engine does itself.
func (e *Engine) Status(ctx context.Context, identifier string) (AccountStatus, error) {
	if err := e.ready(); err != nil {
		return AccountStatus{}, err
	}

	attempts := e.guard.FailedAttempts(ctx, identifier)
	status := AccountStatus{
		IsLocked:          e.guard.IsLocked(ctx, identifier),
		FailedAttempts:    attempts,
		MaxAttempts:       e.guard.MaxFailedAttempts(),
		RemainingAttempts: e.guard.MaxFailedAttempts() - attempts,
	}
	if status.RemainingAttempts < 0 {
		status.RemainingAttempts = 0
	}
	if status.IsLocked {
		status.RemainingAttempts = 0
		status.LockoutExpires = e.guard.LockoutExpiry(ctx, identifier)
	}
	return status, nil
}

// deliver hands a code to the gateway on the configured channel.
func (e *Engine) deliver(ctx context.Context, rec PrincipalRecord, code string) error {
	target := rec.Email
	if e.cfg.Channel == delivery.ChannelSMS && rec.Phone != "" {
		target = rec.Phone
	}
	if err := e.gateway.Send(ctx, target, code, e.cfg.Channel); err != nil {
		e.log.Error("code delivery failed",
			zap.String("principal_id", rec.ID),
			zap.String("channel", string(e.cfg.Channel)),
			zap.Error(err))
		return ErrDeliveryFailed
	}
	return nil
}

// sentOutcome is the uniform "a code was sent" answer. Whether a code
// actually went out is not disclosed.
func (e *Engine) sentOutcome() OTPOutcome {
	return OTPOutcome{
		Success: true,
		Message: "If the account exists, a code has been sent.",
	}
}
