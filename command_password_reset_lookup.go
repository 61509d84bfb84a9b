package auth

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// PasswordResetLookupMessage checks a reset code before the client shows
// the new password form.
type PasswordResetLookupMessage struct {
	Code       string `json:"code"`
	OnResponse func(p *Principal)
}

func (m PasswordResetLookupMessage) Type() string { return "user.password_reset.lookup" }

type PasswordResetLookupHandler struct {
	directory AccountDirectory
	ttl       time.Duration
	clock     Clock
}

func NewPasswordResetLookupHandler(directory AccountDirectory, ttl time.Duration) *PasswordResetLookupHandler {
	return &PasswordResetLookupHandler{
		directory: directory,
		ttl:       resetTTL(ttl),
		clock:     time.Now,
	}
}

func (h *PasswordResetLookupHandler) WithClock(clock Clock) *PasswordResetLookupHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *PasswordResetLookupHandler) Execute(ctx context.Context, event PasswordResetLookupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset lookup")
	default:
		return h.execute(ctx, event)
	}
}

func (h *PasswordResetLookupHandler) execute(ctx context.Context, event PasswordResetLookupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if event.Code == "" {
		return ErrInvalidPasswordResetToken
	}

	principal, err := h.directory.FindByPasswordResetToken(ctx, event.Code, h.clock().Add(-h.ttl))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return ErrInvalidPasswordResetToken
		}
		return passthroughOrWrap(err, "failed to look up password reset code")
	}

	if event.OnResponse != nil {
		event.OnResponse(principal)
	}
	return nil
}

// DefaultPasswordResetTTL bounds how long a reset code stays usable.
const DefaultPasswordResetTTL = 24 * time.Hour

func resetTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultPasswordResetTTL
	}
	return ttl
}
