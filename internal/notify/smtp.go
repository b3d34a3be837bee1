package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	DefaultSMTPHost    = "smtp.gmail.com"
	DefaultSMTPPort    = 465
	DefaultSMTPTimeout = 30 * time.Second
	transportSMTP      = "smtp"
)

// SMTPSender submits mail over an implicit-TLS SMTP session authenticated
// with the sender's address and secret.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	Logger   *slog.Logger

	// TLSConfig overrides the handshake settings; nil verifies Host against the system roots.
	TLSConfig *tls.Config
}

// NewSMTPSender returns a sender for host:port with the default timeout.
func NewSMTPSender(host string, port int, username, password string, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Timeout:  DefaultSMTPTimeout,
		Logger:   discardIfNil(logger),
	}
}

// Send dials, authenticates, submits msg and closes the session on every path.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	logger := discardIfNil(s.Logger)
	m, err := buildMsg(msg)
	if err != nil {
		return fail(ctx, logger, transportSMTP, msg, err)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.Username),
		mail.WithPassword(s.Password),
		mail.WithTimeout(timeout),
	}
	if s.TLSConfig != nil {
		opts = append(opts, mail.WithTLSConfig(s.TLSConfig))
	}
	client, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return fail(ctx, logger, transportSMTP, msg, fmt.Errorf("configure smtp client: %w", err))
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fail(ctx, logger, transportSMTP, msg, fmt.Errorf("send to %s:%d: %w", s.Host, s.Port, err))
	}
	logger.InfoContext(ctx, "email sent",
		slog.String("transport", transportSMTP),
		slog.String("to", msg.To),
	)
	return nil
}

var _ Sender = (*SMTPSender)(nil)
