package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records revoked token IDs in Redis. Each entry carries a
// TTL equal to the token's remaining lifetime at revocation time, so
// entries disappear exactly when the token would have expired anyway.
type RevocationList struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRevocationList returns a RevocationList using the given key prefix.
// An empty prefix defaults to "tok".
func NewRevocationList(redisClient redis.UniversalClient, prefix string) *RevocationList {
	if prefix == "" {
		prefix = "tok"
	}
	return &RevocationList{redis: redisClient, prefix: prefix}
}

func (r *RevocationList) key(jti string) string {
	return r.prefix + ":rvk:" + jti
}

// Add stores a revocation marker for jti that self-expires after ttl.
func (r *RevocationList) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if ttl <= 0 {
		return errors.New("non-positive revocation ttl")
	}
	if err := r.redis.Set(ctx, r.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation write: %w", err)
	}
	return nil
}

// IsRevoked reports whether a live revocation entry exists for jti.
func (r *RevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.redis.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation read: %w", err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of the revocation entry for jti, or
// zero when no entry exists.
func (r *RevocationList) TTL(ctx context.Context, jti string) (time.Duration, error) {
	d, err := r.redis.TTL(ctx, r.key(jti)).Result()
	if err != nil {
		return 0, fmt.Errorf("revocation ttl read: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
