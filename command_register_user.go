package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const commandTimeout = time.Second * 10

type RegisterUserMessage struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Captcha   string `json:"captcha"`

	// UseHashid derives the principal id from the email
	UseHashid  bool             `json:"-"`
	OnResponse func(*Principal) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will validate the payload
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&e.Password, passwordRules()...),
		validation.Field(&e.Password2, append(passwordRules(), validation.By(ValidateStringEquals(e.Password)))...),
		validation.Field(&e.FirstName, validation.Length(0, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
	)
}

// RegisterUserHandler creates a pending LOCAL principal and mails the
// activation link.
type RegisterUserHandler struct {
	directory AccountDirectory
	hasher    PasswordAuthenticator
	notifier  Notifier
	captcha   CaptchaVerifier
	baseURL   string
	activity  ActivitySink
	logger    Logger
	clock     Clock
}

func NewRegisterUserHandler(directory AccountDirectory, hasher PasswordAuthenticator, notifier Notifier) *RegisterUserHandler {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &RegisterUserHandler{
		directory: directory,
		hasher:    hasher,
		notifier:  notifier,
		captcha:   noopCaptcha{},
		activity:  noopActivitySink{},
		logger:    defLogger(),
		clock:     time.Now,
	}
}

// WithCaptcha enables captcha verification
func (h *RegisterUserHandler) WithCaptcha(v CaptchaVerifier) *RegisterUserHandler {
	if v != nil {
		h.captcha = v
	}
	return h
}

// WithBaseURL sets the frontend URL used to build activation links.
func (h *RegisterUserHandler) WithBaseURL(u string) *RegisterUserHandler {
	h.baseURL = strings.TrimSuffix(u, "/")
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) WithClock(clock Clock) *RegisterUserHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if event.Password != "" && event.Password2 != "" && event.Password != event.Password2 {
		return ErrPasswordMismatch
	}

	if err := event.Validate(); err != nil {
		return ValidationError(err, "invalid registration request")
	}

	if err := h.captcha.Verify(ctx, event.Captcha); err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	token := uuid.NewString()
	principal := NewLocalPrincipal(event.Email, hash, token)
	principal.FirstName = strings.TrimSpace(event.FirstName)
	principal.LastName = strings.TrimSpace(event.LastName)

	if event.UseHashid {
		if id, err := hashid.NewUUID(principal.Email); err == nil {
			principal.ID = id
		}
	}

	principal, err = h.directory.Create(ctx, principal)
	if err != nil {
		return passthroughOrWrap(err, "could not create user")
	}

	link := h.baseURL + "/activate/" + token
	if err := h.notifier.SendActivation(ctx, principal, link); err != nil {
		h.logger.Error("activation mail failed", "email", principal.Email, "error", err)
	}

	recordActivity(ctx, h.activity, h.logger, h.clock(), ActivityEventRegistered, principal, map[string]any{
		"email": principal.Email,
	})

	if event.OnResponse != nil {
		event.OnResponse(principal)
	}

	return nil
}

// passthroughOrWrap keeps rich errors (and their chain) intact and wraps
// anything else as internal.
func passthroughOrWrap(err error, message string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
