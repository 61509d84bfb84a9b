package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// ChangePasswordMessage sets a new password for an authenticated principal.
type ChangePasswordMessage struct {
	PrincipalID string `json:"-"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
}

func (m ChangePasswordMessage) Type() string { return "user.password.change" }

func (m ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.PrincipalID, validation.Required),
		validation.Field(&m.Password, passwordRules()...),
		validation.Field(&m.Password2, passwordRules()...),
	)
}

type ChangePasswordHandler struct {
	directory AccountDirectory
	hasher    PasswordAuthenticator
	activity  ActivitySink
	logger    Logger
	clock     Clock
}

func NewChangePasswordHandler(directory AccountDirectory, hasher PasswordAuthenticator) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		directory: directory,
		hasher:    hasher,
		activity:  noopActivitySink{},
		logger:    defLogger(),
		clock:     time.Now,
	}
}

func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password change")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return ValidationError(err, "invalid password change request")
	}
	if event.Password != event.Password2 {
		return ErrPasswordMismatch
	}

	principal, err := h.directory.FindByID(ctx, event.PrincipalID)
	if err != nil {
		return passthroughOrWrap(err, "failed to load principal")
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	principal.SetPasswordHash(hash)

	if _, err := h.directory.Save(ctx, principal, ColumnPasswordHash); err != nil {
		return passthroughOrWrap(err, "failed to change password")
	}

	recordActivity(ctx, h.activity, h.logger, h.clock(), ActivityEventPasswordChanged, principal, nil)
	return nil
}
