package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Code      string `json:"code" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Reset password code"`
	Password  string `json:"password" example:"some_secret" doc:"Password"`
	Password2 string `json:"password2" example:"some_secret" doc:"Password confirmation"`
}

func (m FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

func (m FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Code, validation.Required),
		validation.Field(&m.Password, passwordRules()...),
		validation.Field(&m.Password2, passwordRules()...),
	)
}

type FinalizePasswordResetHandler struct {
	directory AccountDirectory
	hasher    PasswordAuthenticator
	ttl       time.Duration
	activity  ActivitySink
	logger    Logger
	clock     Clock
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(directory AccountDirectory, hasher PasswordAuthenticator, ttl time.Duration) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		directory: directory,
		hasher:    hasher,
		ttl:       resetTTL(ttl),
		activity:  noopActivitySink{},
		logger:    defLogger(),
		clock:     time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithClock(clock Clock) *FinalizePasswordResetHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return ValidationError(err, "invalid password reset request")
	}

	if event.Password != event.Password2 {
		return ErrPasswordMismatch
	}

	passwordHash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	now := h.clock()

	// the claim clears the code in the same statement that writes the hash,
	// a second request with the same code matches no row
	principal, err := h.directory.ClaimPasswordResetToken(ctx, event.Code, passwordHash, now.Add(-h.ttl))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return ErrInvalidPasswordResetToken
		}
		return passthroughOrWrap(err, "failed to finalize password reset")
	}

	recordActivity(ctx, h.activity, h.logger, now, ActivityEventPasswordResetSuccess, principal, map[string]any{
		"email": principal.Email,
	})

	return nil
}
