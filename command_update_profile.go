package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type UpdateProfileMessage struct {
	PrincipalID string           `json:"-"`
	FirstName   string           `json:"firstName"`
	LastName    string           `json:"lastName"`
	City        string           `json:"city"`
	Address     string           `json:"address"`
	PhoneNumber string           `json:"phoneNumber"`
	PostIndex   string           `json:"postIndex"`
	OnResponse  func(*Principal) `json:"-"`
}

func (m UpdateProfileMessage) Type() string { return "user.profile.update" }

func (m UpdateProfileMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.PrincipalID, validation.Required),
		validation.Field(&m.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.City, validation.Length(0, 200)),
		validation.Field(&m.Address, validation.Length(0, 255)),
		validation.Field(&m.PostIndex, validation.Length(0, 32)),
	)
}

type UpdateProfileHandler struct {
	directory   AccountDirectory
	phoneRegion string
	activity    ActivitySink
	logger      Logger
	clock       Clock
}

func NewUpdateProfileHandler(directory AccountDirectory) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		directory:   directory,
		phoneRegion: DefaultPhoneRegion,
		activity:    noopActivitySink{},
		logger:      defLogger(),
		clock:       time.Now,
	}
}

// WithPhoneRegion sets the region used for numbers without a country code.
func (h *UpdateProfileHandler) WithPhoneRegion(region string) *UpdateProfileHandler {
	if region != "" {
		h.phoneRegion = strings.ToUpper(region)
	}
	return h
}

func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return ValidationError(err, "invalid profile")
	}

	phone, ok := NormalizePhone(event.PhoneNumber, h.phoneRegion)
	if !ok {
		return goerrors.NewValidation("invalid profile", goerrors.FieldError{
			Field:   "phoneNumber",
			Message: "must be a valid phone number",
			Value:   event.PhoneNumber,
		}).WithCode(goerrors.CodeBadRequest)
	}

	principal, err := h.directory.FindByID(ctx, event.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return err
		}
		return passthroughOrWrap(err, "failed to load principal")
	}

	principal.FirstName = strings.TrimSpace(event.FirstName)
	principal.LastName = strings.TrimSpace(event.LastName)
	principal.City = strings.TrimSpace(event.City)
	principal.Address = strings.TrimSpace(event.Address)
	principal.PhoneNumber = phone
	principal.PostIndex = strings.TrimSpace(event.PostIndex)

	principal, err = h.directory.Save(ctx, principal, ProfileColumns...)
	if err != nil {
		return passthroughOrWrap(err, "failed to update profile")
	}

	recordActivity(ctx, h.activity, h.logger, h.clock(), ActivityEventProfileUpdated, principal, nil)

	if event.OnResponse != nil {
		event.OnResponse(principal)
	}
	return nil
}
