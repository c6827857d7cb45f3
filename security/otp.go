package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OTPPurpose namespaces one-time codes so a live code for one flow can
// never satisfy another, even when the digits coincide.
type OTPPurpose string

const (
	OTPUnlock       OTPPurpose = "unlock"
	OTPVerification OTPPurpose = "verification"
	OTPReset        OTPPurpose = "password_reset"
)

// GenerateUnlockOTP issues a fresh unlock code for identifier,
// overwriting any live one.
func (g *Guard) GenerateUnlockOTP(ctx context.Context, identifier string) (string, error) {
	return g.generateOTP(ctx, OTPUnlock, identifier)
}

// GenerateVerificationOTP issues a fresh identity-verification code.
func (g *Guard) GenerateVerificationOTP(ctx context.Context, identifier string) (string, error) {
	return g.generateOTP(ctx, OTPVerification, identifier)
}

// GenerateResetOTP issues a fresh password-reset code.
func (g *Guard) GenerateResetOTP(ctx context.Context, identifier string) (string, error) {
	return g.generateOTP(ctx, OTPReset, identifier)
}

// VerifyUnlockOTP checks an unlock code. On success the code is consumed
// and the identifier's lockout counter and flag are cleared — the one
// cross-effect between the OTP flows and the lockout state machine.
func (g *Guard) VerifyUnlockOTP(ctx context.Context, identifier, code string) bool {
	if !g.verifyOTP(ctx, OTPUnlock, identifier, code) {
		return false
	}
	if err := g.ClearFailedAttempts(ctx, identifier); err != nil {
		// The code is already consumed; the lock flag still lapses on its
		// own TTL.
		g.log.Warn("lockout clear after unlock failed",
			zap.String("identifier", identifier),
			zap.Error(err))
	}
	return true
}

// VerifyVerificationOTP checks and consumes an identity-verification code.
func (g *Guard) VerifyVerificationOTP(ctx context.Context, identifier, code string) bool {
	return g.verifyOTP(ctx, OTPVerification, identifier, code)
}

// VerifyResetOTP checks and consumes a password-reset code. A code that
// was never generated is never accepted — there is no fallback value.
func (g *Guard) VerifyResetOTP(ctx context.Context, identifier, code string) bool {
	return g.verifyOTP(ctx, OTPReset, identifier, code)
}

func (g *Guard) generateOTP(ctx context.Context, purpose OTPPurpose, identifier string) (string, error) {
	code, err := newCode(OTPDigits)
	if err != nil {
		return "", err
	}
	if err := g.redis.Set(ctx, g.otpKey(purpose, identifier), code, g.config.OTPTTL).Err(); err != nil {
		return "", wrapUnavailable(err)
	}
	return code, nil
}

// verifyOTP returns true only on an exact match, deleting the stored code
// so it is single-use. Mismatch and absence leave the stored state
// untouched.
func (g *Guard) verifyOTP(ctx context.Context, purpose OTPPurpose, identifier, code string) bool {
	if code == "" {
		return false
	}

	key := g.otpKey(purpose, identifier)
	stored, err := g.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.log.Warn("otp read failed",
				zap.String("purpose", string(purpose)),
				zap.String("identifier", identifier),
				zap.Error(err))
		}
		return false
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false
	}

	if err := g.redis.Del(ctx, key).Err(); err != nil {
		// Refuse success rather than risk the code being replayable.
		g.log.Warn("otp consume failed",
			zap.String("purpose", string(purpose)),
			zap.String("identifier", identifier),
			zap.Error(err))
		return false
	}
	return true
}

// newCode draws digits decimal digits from a cryptographically secure
// source.
func newCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
