package authcore

import (
	"errors"
	"time"

	"github.com/rescuelink/authcore/delivery"
	"github.com/rescuelink/authcore/password"
	"github.com/rescuelink/authcore/security"
	"github.com/rescuelink/authcore/token"
)

// Config aggregates the per-subsystem configurations. Zero values for
// the nested sections are filled from their package defaults by
// DefaultConfig; only Token.Secret has no usable default.
type Config struct {
	Token    token.Config
	Security security.Config
	Password password.Config
	Audit    AuditConfig
	// Channel selects how one-time codes are delivered. Defaults to
	// email.
	Channel delivery.Channel
}

// AuditConfig controls the asynchronous audit trail.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking emitters when the
	// buffer is saturated.
	DropIfFull bool
}

// DefaultConfig returns production defaults for everything except the
// token secret, which the caller must set.
func DefaultConfig() Config {
	return Config{
		Token: token.Config{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "rescuelink-authcore",
		},
		Security: security.DefaultConfig(),
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Channel: delivery.ChannelEmail,
	}
}

// Validate checks the cross-cutting parts of the configuration. The
// nested sections validate themselves inside their constructors.
func (c Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("token secret required")
	}
	switch c.Channel {
	case "", delivery.ChannelEmail, delivery.ChannelSMS:
	default:
		return errors.New("unknown delivery channel")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	return nil
}
