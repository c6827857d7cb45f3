package authcore

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rescuelink/authcore/delivery"
	"github.com/rescuelink/authcore/password"
	"github.com/rescuelink/authcore/security"
	"github.com/rescuelink/authcore/token"
)

// Deps carries the engine's injected collaborators. Redis, Credentials,
// and Gateway are required; the rest default to no-ops.
type Deps struct {
	Redis       redis.UniversalClient
	Credentials CredentialStore
	Gateway     delivery.Gateway
	Logger      *zap.Logger
	AuditSink   AuditSink
	// Registry enables Prometheus instrumentation when set.
	Registry prometheus.Registerer
}

// Engine is the authentication orchestrator. Construct it once with
// NewEngine and share it; all methods are safe for concurrent use.
type Engine struct {
	cfg     Config
	creds   CredentialStore
	gateway delivery.Gateway
	tokens  *token.Manager
	guard   *security.Guard
	hasher  *password.Hasher
	log     *zap.Logger
	audit   *auditDispatcher
	metrics *engineMetrics
}

// NewEngine validates cfg, fills zero-valued nested sections with their
// package defaults, and wires the subsystems.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Redis == nil {
		return nil, errors.New("redis client required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("credential store required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("delivery gateway required")
	}
	if cfg.Security == (security.Config{}) {
		cfg.Security = security.DefaultConfig()
	}
	if cfg.Password == (password.Config{}) {
		cfg.Password = password.DefaultConfig()
	}
	if cfg.Channel == "" {
		cfg.Channel = delivery.ChannelEmail
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tokens, err := token.NewManager(cfg.Token, deps.Redis, log.Named("token"))
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	guard, err := security.NewGuard(deps.Redis, cfg.Security, log.Named("security"))
	if err != nil {
		return nil, fmt.Errorf("security guard: %w", err)
	}
	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		creds:   deps.Credentials,
		gateway: deps.Gateway,
		tokens:  tokens,
		guard:   guard,
		hasher:  hasher,
		log:     log,
		audit:   newAuditDispatcher(cfg.Audit, deps.AuditSink),
		metrics: newEngineMetrics(deps.Registry),
	}, nil
}

// Tokens exposes the token manager for middleware that only needs
// verification.
func (e *Engine) Tokens() *token.Manager {
	return e.tokens
}

// AuditDropped reports how many audit events were discarded under the
// drop-if-full policy.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) ready() error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return nil
}
