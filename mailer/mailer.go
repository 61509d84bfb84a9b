// Package mailer renders and delivers account emails: activation and
// password reset links.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/django/v3"
	mail "github.com/wneessen/go-mail"

	auth "github.com/goliatone/go-shop-auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	SubjectActivation    = "Activation code"
	SubjectPasswordReset = "Password reset"

	templateActivation    = "activation"
	templatePasswordReset = "password_reset"
)

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Config holds message defaults
type Config struct {
	FromEmail string
	FromName  string
	ShopName  string
	// ResetValidFor is shown in the reset email.
	ResetValidFor time.Duration
}

// Notifier implements auth.Notifier with HTML templates.
type Notifier struct {
	sender    Sender
	templates *django.Engine
	config    Config
	logger    auth.Logger
}

var _ auth.Notifier = (*Notifier)(nil)

// NewNotifier loads the embedded templates.
func NewNotifier(sender Sender, cfg Config) (*Notifier, error) {
	if cfg.ShopName == "" {
		cfg.ShopName = "Perfume shop"
	}
	if cfg.ResetValidFor <= 0 {
		cfg.ResetValidFor = 24 * time.Hour
	}

	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}

	return &Notifier{
		sender:    sender,
		templates: engine,
		config:    cfg,
		logger:    auth.NewNopLogger(),
	}, nil
}

func (n *Notifier) WithLogger(logger auth.Logger) *Notifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

func (n *Notifier) SendActivation(ctx context.Context, principal *auth.Principal, link string) error {
	body, err := n.Render(templateActivation, map[string]any{
		"name":  principal.DisplayName(),
		"email": principal.Email,
		"link":  link,
		"shop":  n.config.ShopName,
	})
	if err != nil {
		return err
	}
	return n.send(ctx, principal.Email, SubjectActivation, body)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, principal *auth.Principal, link string) error {
	body, err := n.Render(templatePasswordReset, map[string]any{
		"name":      principal.DisplayName(),
		"email":     principal.Email,
		"link":      link,
		"shop":      n.config.ShopName,
		"valid_for": humanDuration(n.config.ResetValidFor),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, principal.Email, SubjectPasswordReset, body)
}

// Render executes the named template.
func (n *Notifier) Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := n.templates.Render(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Compose builds the message without sending it.
func (n *Notifier) Compose(to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if n.config.FromName != "" {
		if err := msg.FromFormat(n.config.FromName, n.config.FromEmail); err != nil {
			return nil, fmt.Errorf("mail from: %w", err)
		}
	} else if err := msg.From(n.config.FromEmail); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) error {
	msg, err := n.Compose(to, subject, body)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Error("mail delivery failed", "to", to, "subject", subject, "error", err)
		return err
	}
	n.logger.Debug("mail sent", "to", to, "subject", subject)
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
