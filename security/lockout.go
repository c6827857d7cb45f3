package security

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RecordFailedLogin increments the failed-attempt counter for identifier
// and resets its TTL to the full lockout duration. When the counter
// reaches the configured maximum the lock flag is set with the same TTL.
//
// Two concurrent failures can both observe "below max" and land the
// counter at max+1; the account still locks, so no cross-request lock is
// taken around the threshold check.
//
// Store errors never propagate: with FailOpen the call degrades to a
// single recorded attempt with no lock, otherwise it reports the account
// as locked.
func (g *Guard) RecordFailedLogin(ctx context.Context, identifier string) FailedLoginState {
	key := g.attemptsKey(identifier)

	pipe := g.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, g.config.LockoutDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return g.degradedFailureState(identifier, err)
	}

	attempts := int(incr.Val())
	state := FailedLoginState{
		Attempts:          attempts,
		RemainingAttempts: g.config.MaxFailedAttempts - attempts,
	}
	if state.RemainingAttempts < 0 {
		state.RemainingAttempts = 0
	}

	if attempts >= g.config.MaxFailedAttempts {
		state.Locked = true
		state.LockoutExpires = time.Now().Add(g.config.LockoutDuration)
		if err := g.redis.Set(ctx, g.lockKey(identifier), "1", g.config.LockoutDuration).Err(); err != nil {
			// Counter is already at threshold; the next check or attempt
			// will retry the flag write.
			g.log.Warn("lock flag write failed",
				zap.String("identifier", identifier),
				zap.Error(err))
		}
	}
	return state
}

// IsLocked reports whether a live lock flag exists for identifier. The
// flag expires on its own after the lockout duration; no explicit unlock
// is needed for the natural Locked -> Normal transition.
func (g *Guard) IsLocked(ctx context.Context, identifier string) bool {
	n, err := g.redis.Exists(ctx, g.lockKey(identifier)).Result()
	if err != nil {
		g.log.Warn("lock check failed",
			zap.String("identifier", identifier),
			zap.Error(err))
		// Fail open: the login attempt still has to present the correct
		// password, so availability wins here.
		return !g.config.FailOpen
	}
	return n > 0
}

// FailedAttempts returns the current counter value, zero when absent or
// unreadable.
func (g *Guard) FailedAttempts(ctx context.Context, identifier string) int {
	n, err := g.redis.Get(ctx, g.attemptsKey(identifier)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.log.Warn("failed-attempt read failed",
				zap.String("identifier", identifier),
				zap.Error(err))
		}
		return 0
	}
	return n
}

// ClearFailedAttempts unconditionally deletes both the counter and the
// lock flag. This is the single trusted reset path, called on every
// successful login and after a successful password reset.
func (g *Guard) ClearFailedAttempts(ctx context.Context, identifier string) error {
	err := g.redis.Del(ctx, g.attemptsKey(identifier), g.lockKey(identifier)).Err()
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// LockoutExpiry returns when the identifier's lock flag lapses, or the
// zero time when the identifier is not locked.
func (g *Guard) LockoutExpiry(ctx context.Context, identifier string) time.Time {
	ttl, err := g.redis.TTL(ctx, g.lockKey(identifier)).Result()
	if err != nil || ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (g *Guard) degradedFailureState(identifier string, err error) FailedLoginState {
	g.log.Warn("failed-login recording degraded",
		zap.String("identifier", identifier),
		zap.Bool("fail_open", g.config.FailOpen),
		zap.Error(err))
	if g.config.FailOpen {
		return FailedLoginState{
			Attempts:          1,
			RemainingAttempts: g.config.MaxFailedAttempts - 1,
		}
	}
	return FailedLoginState{
		Locked:            true,
		Attempts:          g.config.MaxFailedAttempts,
		RemainingAttempts: 0,
		LockoutExpires:    time.Now().Add(g.config.LockoutDuration),
	}
}
