package mailer

import (
	"context"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"

	auth "github.com/goliatone/go-shop-auth"
)

// SMTPConfig holds server credentials. An empty Username disables auth.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS requires STARTTLS when true, otherwise it is opportunistic.
	TLS     bool
	Timeout time.Duration
}

// SMTPSender dials the server for every message.
type SMTPSender struct {
	config SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{config: cfg}
}

func (s *SMTPSender) options() []mail.Option {
	policy := mail.TLSOpportunistic
	if s.config.TLS {
		policy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(s.config.Timeout),
	}
	if s.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
		)
	}
	return opts
}

func (s *SMTPSender) Send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.config.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogNotifier writes links to the logger instead of sending mail. Used in
// development when no SMTP host is configured.
type LogNotifier struct {
	logger auth.Logger
}

var _ auth.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger auth.Logger) *LogNotifier {
	if logger == nil {
		logger = auth.NewNopLogger()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) SendActivation(_ context.Context, principal *auth.Principal, link string) error {
	l.logger.Info("activation link", "email", principal.Email, "link", link)
	return nil
}

func (l *LogNotifier) SendPasswordReset(_ context.Context, principal *auth.Principal, link string) error {
	l.logger.Info("password reset link", "email", principal.Email, "link", link)
	return nil
}
