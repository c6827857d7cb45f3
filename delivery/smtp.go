package delivery

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// SMTPConfig configures the SMTP gateway.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	// TLSMode is one of "auto", "ssl", or "none". "auto" negotiates
	// STARTTLS when the server offers it.
	TLSMode            string
	InsecureSkipVerify bool
	// Subject for code emails. Defaults to a generic security-code line.
	Subject string
}

// SMTPGateway delivers one-time codes over email. It only speaks the
// email channel; SMS requests return ErrChannelUnsupported.
type SMTPGateway struct {
	cfg SMTPConfig
	log *zap.Logger
}

// NewSMTPGateway validates cfg and returns an SMTP gateway.
func NewSMTPGateway(cfg SMTPConfig, log *zap.Logger) (*SMTPGateway, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp host and port required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address required")
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if cfg.Subject == "" {
		cfg.Subject = "Your security code"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPGateway{cfg: cfg, log: log}, nil
}

func (s *SMTPGateway) Send(ctx context.Context, identifier, code string, channel Channel) error {
	if channel != ChannelEmail {
		return fmt.Errorf("%w: %s", ErrChannelUnsupported, channel)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", identifier)
	m.SetHeader("Subject", s.cfg.Subject)
	m.SetBody("text/plain", fmt.Sprintf(
		"Your one-time code is %s.\n\nIt expires shortly and can be used once. If you did not request it, ignore this message.\n",
		code))

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	}

	if err := d.DialAndSend(m); err != nil {
		s.log.Error("smtp send failed",
			zap.String("host", s.cfg.Host),
			zap.String("to", identifier),
			zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.Debug("code email sent", zap.String("to", identifier))
	return nil
}
