// Package security implements the account-security engine: the
// failed-login lockout state machine and the one-time-code flows for
// account unlock, identity verification, and password reset.
//
// All state lives in Redis under TTL-bounded keys; nothing is ever
// enumerated, every access is by exact key. Store-connectivity failures
// never escape the public methods — each one degrades to the least
// restrictive safe default when FailOpen is set (the default), so a
// transient Redis outage cannot lock legitimate users out of a
// consumer-safety product. With FailOpen disabled, lock checks and
// failure recording treat an unreachable store as locked instead.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OTPDigits is the fixed length of every generated one-time code.
const OTPDigits = 6

// ErrUnavailable indicates the Redis backend is unreachable.
var ErrUnavailable = errors.New("security backend unavailable")

// Config holds lockout and OTP tuning parameters.
type Config struct {
	MaxFailedAttempts int           // lock threshold, default 5
	LockoutDuration   time.Duration // counter and lock-flag TTL, default 30m
	OTPTTL            time.Duration // one-time-code validity window, default 10m
	FailOpen          bool          // degrade to "not locked" on store errors
	RedisPrefix       string        // key namespace, default "acs"
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxFailedAttempts: 5,
		LockoutDuration:   30 * time.Minute,
		OTPTTL:            10 * time.Minute,
		FailOpen:          true,
		RedisPrefix:       "acs",
	}
}

// FailedLoginState is returned by RecordFailedLogin and describes the
// identifier's position in the lockout state machine after the increment.
type FailedLoginState struct {
	Locked            bool
	Attempts          int
	RemainingAttempts int
	// LockoutExpires is only meaningful when Locked is true.
	LockoutExpires time.Time
}

// Guard is the account-security engine. Safe for concurrent use; per-key
// atomicity is delegated to Redis (INCR/EXPIRE), no cross-request locks
// are held around the threshold check.
type Guard struct {
	redis  redis.UniversalClient
	config Config
	log    *zap.Logger
}

// NewGuard validates cfg and returns a Guard.
func NewGuard(redisClient redis.UniversalClient, cfg Config, log *zap.Logger) (*Guard, error) {
	if redisClient == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.MaxFailedAttempts <= 0 {
		return nil, errors.New("max failed attempts must be positive")
	}
	if cfg.LockoutDuration <= 0 || cfg.OTPTTL <= 0 {
		return nil, errors.New("lockout duration and otp ttl must be positive")
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "acs"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{redis: redisClient, config: cfg, log: log}, nil
}

// MaxFailedAttempts returns the configured lock threshold.
func (g *Guard) MaxFailedAttempts() int {
	return g.config.MaxFailedAttempts
}

// OTPValidity returns the configured one-time-code validity window.
func (g *Guard) OTPValidity() time.Duration {
	return g.config.OTPTTL
}

func (g *Guard) attemptsKey(identifier string) string {
	return g.config.RedisPrefix + ":fla:" + identifier
}

func (g *Guard) lockKey(identifier string) string {
	return g.config.RedisPrefix + ":lock:" + identifier
}

func (g *Guard) otpKey(purpose OTPPurpose, identifier string) string {
	return g.config.RedisPrefix + ":otp:" + string(purpose) + ":" + identifier
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
