package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rescuelink/authcore/security"
)

// RequestPasswordReset starts a reset flow. The receipt is identical
// for known and unknown identifiers, including the validity window, so
// the endpoint cannot be used to enumerate accounts. Delivery failures
// for known accounts are logged but also hidden behind the same
// receipt.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (ResetRequestReceipt, error) {
	if err := e.ready(); err != nil {
		return ResetRequestReceipt{}, err
	}

	receipt := ResetRequestReceipt{
		Success:          true,
		Message:          "If the account exists, a reset code has been sent.",
		ExpiresInMinutes: int(e.guard.OTPValidity() / time.Minute),
	}

	rec, err := e.creds.FindPrincipal(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) {
			e.log.Error("principal lookup for reset failed", zap.Error(err))
		}
		return receipt, nil
	}

	code, err := e.guard.GenerateResetOTP(ctx, identifier)
	if err != nil {
		e.log.Error("reset code generation failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
		return receipt, nil
	}
	if err := e.deliver(ctx, rec, code); err != nil {
		// Already logged by deliver; the receipt stays uniform.
		return receipt, nil
	}

	e.metrics.otpIssue(string(security.OTPReset))
	e.audit.Emit(ctx, AuditEvent{
		EventType:   AuditResetRequest,
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		FirmID:      rec.FirmID,
		Success:     true,
	})
	return receipt, nil
}

// ConfirmPasswordReset consumes a reset code and installs the new
// password. The new password is validated and hashed before the code
// is consumed, so a policy rejection does not burn the code. Success
// clears any failed-login state; issued tokens stay valid until they
// expire, which is why access TTLs are kept short.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, identifier, code, newPassword string) (OTPOutcome, error) {
	if err := e.ready(); err != nil {
		return OTPOutcome{}, err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return OTPOutcome{}, err
	}

	if !e.guard.VerifyResetOTP(ctx, identifier, code) {
		e.metrics.otpConfirm(string(security.OTPReset), false)
		e.audit.Emit(ctx, AuditEvent{EventType: AuditResetConfirm})
		return OTPOutcome{}, ErrOTPInvalid
	}
	e.metrics.otpConfirm(string(security.OTPReset), true)

	rec, err := e.creds.FindPrincipal(ctx, identifier)
	if err != nil {
		// A valid code for a vanished account; nothing to update.
		e.log.Error("principal lookup after reset code failed", zap.Error(err))
		return OTPOutcome{}, ErrOTPInvalid
	}

	if err := e.creds.UpdatePasswordHash(ctx, rec.ID, newHash); err != nil {
		e.log.Error("password update failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
		return OTPOutcome{}, err
	}

	if err := e.guard.ClearFailedAttempts(ctx, identifier); err != nil {
		e.log.Warn("failed-attempt clear after reset failed",
			zap.String("principal_id", rec.ID),
			zap.Error(err))
	}

	e.audit.Emit(ctx, AuditEvent{
		EventType:   AuditResetConfirm,
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		FirmID:      rec.FirmID,
		Success:     true,
	})
	return OTPOutcome{Success: true, Message: "Password updated."}, nil
}
