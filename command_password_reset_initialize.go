package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// InitializePasswordResetResponse reports the outcome. Sent is false when the
// email is unknown, callers must not reveal that to clients.
type InitializePasswordResetResponse struct {
	Principal *Principal
	Sent      bool
}

type InitializePasswordResetHandler struct {
	directory AccountDirectory
	notifier  Notifier
	baseURL   string
	activity  ActivitySink
	logger    Logger
	clock     Clock
}

func NewInitializePasswordResetHandler(directory AccountDirectory, notifier Notifier) *InitializePasswordResetHandler {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &InitializePasswordResetHandler{
		directory: directory,
		notifier:  notifier,
		activity:  noopActivitySink{},
		logger:    defLogger(),
		clock:     time.Now,
	}
}

// WithBaseURL sets the frontend URL used to build reset links.
func (h *InitializePasswordResetHandler) WithBaseURL(u string) *InitializePasswordResetHandler {
	h.baseURL = strings.TrimSuffix(u, "/")
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) WithClock(clock Clock) *InitializePasswordResetHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return ValidationError(err, "invalid password reset request")
	}

	now := h.clock()
	token := uuid.NewString()

	principal, err := h.directory.SetPasswordResetToken(ctx, NormalizeEmail(event.Email), token, now)
	if err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) {
			return passthroughOrWrap(err, "failed to initialize password reset")
		}
		h.logger.Debug("password reset for unknown email", "email", event.Email)
	} else {
		link := h.baseURL + "/reset/" + token
		if err := h.notifier.SendPasswordReset(ctx, principal, link); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send password reset mail")
		}
		resp.Principal = principal
		resp.Sent = true

		recordActivity(ctx, h.activity, h.logger, now, ActivityEventPasswordResetRequest, principal, map[string]any{
			"email": principal.Email,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
