// Package token implements the signed-token service: access/refresh token
// minting, verification, revocation, and single-use refresh rotation.
//
// Tokens are standard JWTs signed with a symmetric HMAC key. Every token
// carries a unique jti; revocation is a Redis entry keyed by jti whose TTL
// equals the token's remaining lifetime, so the blacklist never grows
// without bound.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Purpose distinguishes access tokens from refresh tokens. A token minted
// for one purpose is never accepted where the other is required.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

var (
	// ErrExpired indicates a structurally valid token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid indicates a malformed token or signature failure.
	ErrInvalid = errors.New("invalid token")
	// ErrRevoked indicates a token whose jti is on the revocation list.
	ErrRevoked = errors.New("token revoked")
	// ErrWrongPurpose indicates an access token presented where a refresh
	// token is required, or vice versa.
	ErrWrongPurpose = errors.New("wrong token purpose")
	// ErrRevocationUnavailable indicates the revocation backend is unreachable.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
)

// Claims is the signed payload carried by every token. Access tokens carry
// the full identity; refresh tokens carry only subject, kind, and purpose
// to minimize blast radius if leaked.
type Claims struct {
	Kind        string   `json:"kind"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	FirmID      string   `json:"firm_id,omitempty"`
	Role        string   `json:"role,omitempty"`
	Purpose     Purpose  `json:"purpose"`
	jwt.RegisteredClaims
}

// Identity is the caller-supplied principal view encoded into access tokens.
type Identity struct {
	PrincipalID string
	Kind        string
	Email       string
	Permissions []string
	FirmID      string
	Role        string
}

// Pair is an access/refresh token pair. ExpiresIn is the access token
// lifetime in seconds. Pairs are never persisted; they are reconstructed
// on every mint.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LookupFunc re-fetches the current principal during refresh rotation so
// role and permission changes take effect without forcing re-login. It
// must return an error when the principal is missing, inactive, or
// suspended.
type LookupFunc func(ctx context.Context, principalID, kind string) (Identity, error)

// Config holds signing and lifetime parameters.
type Config struct {
	Secret     []byte
	Algorithm  string // "hs256" (default), "hs384", "hs512"
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
	// RedisPrefix namespaces revocation entries. Defaults to "tok".
	RedisPrefix string
}

// Manager mints, verifies, revokes, and rotates tokens. Safe for
// concurrent use after construction.
type Manager struct {
	config      Config
	revocations *RevocationList
	log         *zap.Logger
}

// NewManager validates cfg and returns a Manager whose revocation list is
// backed by the given Redis client.
func NewManager(cfg Config, redisClient redis.UniversalClient, log *zap.Logger) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.Algorithm {
	case "", "hs256", "hs384", "hs512":
	default:
		return nil, errors.New("unsupported signing algorithm")
	}
	if redisClient == nil {
		return nil, errors.New("redis client required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Manager{
		config:      cfg,
		revocations: NewRevocationList(redisClient, cfg.RedisPrefix),
		log:         log,
	}, nil
}

// CreateAccessToken mints an access token for id. A non-positive ttl uses
// the configured default.
func (m *Manager) CreateAccessToken(id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.config.AccessTTL
	}
	claims := Claims{
		Kind:        id.Kind,
		Email:       id.Email,
		Permissions: id.Permissions,
		FirmID:      id.FirmID,
		Role:        id.Role,
		Purpose:     PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.PrincipalID,
			Issuer:    m.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(m.method(), claims).SignedString(m.config.Secret)
}

// CreateRefreshToken mints a refresh token with a deliberately narrow
// claim set: no email, permissions, firm, or role.
func (m *Manager) CreateRefreshToken(principalID, kind string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.config.RefreshTTL
	}
	claims := Claims{
		Kind:    kind,
		Purpose: PurposeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			Issuer:    m.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(m.method(), claims).SignedString(m.config.Secret)
}

// CreatePair mints an access+refresh pair for id.
func (m *Manager) CreatePair(id Identity) (*Pair, error) {
	access, err := m.CreateAccessToken(id, 0)
	if err != nil {
		return nil, err
	}
	refresh, err := m.CreateRefreshToken(id.PrincipalID, id.Kind, 0)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.config.AccessTTL / time.Second),
	}, nil
}

// Verify parses and validates tokenStr. Signature and expiry are checked
// first; the revocation list is consulted only for tokens that passed
// signature validation, so a malformed token never reaches Redis.
func (m *Manager) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, false)
	if err != nil {
		return nil, err
	}

	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// VerifyPurpose is Verify plus an assertion that the token was minted for
// the given purpose.
func (m *Manager) VerifyPurpose(ctx context.Context, tokenStr string, purpose Purpose) (*Claims, error) {
	claims, err := m.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// Revoke invalidates tokenStr ahead of its natural expiry. Already-expired
// tokens are trivially revoked and return true without touching the store.
// Returns false when the token cannot be decoded, has no jti, or the
// revocation entry cannot be written.
func (m *Manager) Revoke(ctx context.Context, tokenStr string) bool {
	// Expiry is deliberately not validated here: revoking an expired
	// token must succeed.
	claims, err := m.parse(tokenStr, true)
	if err != nil {
		return false
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return false
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return true
	}

	if err := m.revocations.Add(ctx, claims.ID, remaining); err != nil {
		m.log.Warn("revocation entry write failed", zap.Error(err))
		return false
	}
	return true
}

// Refresh rotates a refresh token: the token is verified and asserted to
// be refresh-purpose, the principal is re-fetched through lookup, the old
// token is revoked (single-use rotation), and a fresh pair is minted.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, lookup LookupFunc) (*Pair, error) {
	claims, err := m.VerifyPurpose(ctx, refreshToken, PurposeRefresh)
	if err != nil {
		return nil, err
	}

	id, err := lookup(ctx, claims.Subject, claims.Kind)
	if err != nil {
		return nil, err
	}

	// The old token must be dead before the new pair exists, otherwise a
	// stolen refresh token stays replayable after legitimate rotation.
	if ok := m.Revoke(ctx, refreshToken); !ok {
		return nil, fmt.Errorf("%w: failed to revoke rotated refresh token", ErrRevocationUnavailable)
	}

	return m.CreatePair(id)
}

// Revocations exposes the underlying revocation list for introspection.
func (m *Manager) Revocations() *RevocationList {
	return m.revocations
}

func (m *Manager) parse(tokenStr string, skipClaimsValidation bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" && !skipClaimsValidation {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if skipClaimsValidation {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.Algorithm {
	case "hs384":
		return jwt.SigningMethodHS384
	case "hs512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}
