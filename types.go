package auth

import (
	"context"
	"time"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetTokenHeader() string
	GetAuthScheme() string
	GetPasswordResetTTL() time.Duration
	GetFrontendURL() string
}

// AccountDirectory is the storage contract for principals.
// Lookups by email use NormalizeEmail on both sides.
type AccountDirectory interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id string) (*Principal, error)
	Create(ctx context.Context, principal *Principal) (*Principal, error)
	// Save writes principal back. When columns are given only those (and
	// updated_at) are written and the stored row is returned.
	Save(ctx context.Context, principal *Principal, columns ...string) (*Principal, error)
	List(ctx context.Context, limit, offset int) ([]*Principal, int, error)

	// ClaimActivationToken clears a matching activation token and marks the
	// principal active in a single conditional update.
	ClaimActivationToken(ctx context.Context, token string) (*Principal, error)
	// SetPasswordResetToken stores a reset token for the principal with email.
	SetPasswordResetToken(ctx context.Context, email, token string, at time.Time) (*Principal, error)
	// FindByPasswordResetToken returns the principal holding a live reset token.
	FindByPasswordResetToken(ctx context.Context, token string, notBefore time.Time) (*Principal, error)
	// ClaimPasswordResetToken replaces the password hash and clears the reset
	// token in a single conditional update. Tokens requested before notBefore
	// are treated as expired.
	ClaimPasswordResetToken(ctx context.Context, token, passwordHash string, notBefore time.Time) (*Principal, error)
	// TrackLoginAttempt records a failed (success=false) or successful login.
	TrackLoginAttempt(ctx context.Context, principal *Principal, success bool, at time.Time) error
}

// Notifier delivers account mails. Implementations live in the mailer package.
type Notifier interface {
	SendActivation(ctx context.Context, principal *Principal, link string) error
	SendPasswordReset(ctx context.Context, principal *Principal, link string) error
}

// PasswordAuthenticator hashes and compares passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// CaptchaVerifier checks a client captcha response.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response string) error
}

type noopCaptcha struct{}

func (noopCaptcha) Verify(context.Context, string) error { return nil }

type noopNotifier struct{}

func (noopNotifier) SendActivation(context.Context, *Principal, string) error    { return nil }
func (noopNotifier) SendPasswordReset(context.Context, *Principal, string) error { return nil }

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time
