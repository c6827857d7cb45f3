package authcore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rescuelink/authcore/security"
)

// RequestVerificationOTP issues an identity-verification code. The
// response is success-shaped whether or not the identifier resolves,
// and an already-verified account silently gets no code.
func (e *Engine) RequestVerificationOTP(ctx context.Context, identifier string) (OTPOutcome, error) {
	if err := e.ready(); err != nil {
		return OTPOutcome{}, err
	}

	rec, err := e.creds.FindPrincipal(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return e.sentOutcome(), nil
		}
		return OTPOutcome{}, err
	}
	if rec.Verified {
		return e.sentOutcome(), nil
	}

	code, err := e.guard.GenerateVerificationOTP(ctx, identifier)
	if err != nil {
		return OTPOutcome{}, err
	}
	if err := e.deliver(ctx, rec, code); err != nil {
		return OTPOutcome{}, err
	}

	e.metrics.otpIssue(string(security.OTPVerification))
	e.audit.Emit(ctx, AuditEvent{
		EventType:   AuditVerifyRequest,
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		Success:     true,
	})
	return e.sentOutcome(), nil
}

// ConfirmVerificationOTP consumes a verification code and marks the
// account verified.
func (e *Engine) ConfirmVerificationOTP(ctx context.Context, identifier, code string) (OTPOutcome, error) {
	if err := e.ready(); err != nil {
		return OTPOutcome{}, err
	}

	ok := e.guard.VerifyVerificationOTP(ctx, identifier, code)
	e.metrics.otpConfirm(string(security.OTPVerification), ok)
	if !ok {
		e.audit.Emit(ctx, AuditEvent{EventType: AuditVerifyConfirm})
		return OTPOutcome{}, ErrOTPInvalid
	}

	rec, err := e.creds.FindPrincipal(ctx, identifier)
	if err != nil {
		// The code is consumed but the flag is not set; the user can
		// request a fresh one.
		e.log.Error("principal lookup after verification failed",
			zap.Error(err))
		return OTPOutcome{}, err
	}
	if !rec.Verified {
		if err := e.creds.MarkVerified(ctx, rec.ID); err != nil {
			e.log.Error("verification flag write failed",
				zap.String("principal_id", rec.ID),
				zap.Error(err))
			return OTPOutcome{}, err
		}
	}

	e.audit.Emit(ctx, AuditEvent{
		EventType:   AuditVerifyConfirm,
		PrincipalID: rec.ID,
		Kind:        string(rec.Kind),
		Success:     true,
	})
	return OTPOutcome{Success: true, Message: "Account verified."}, nil
}
