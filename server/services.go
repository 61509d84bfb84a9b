package server

import (
	"time"

	auth "github.com/goliatone/go-shop-auth"
)

// Services groups the account operations the controllers call.
type Services struct {
	Authenticator  *auth.Authenticator
	Directory      auth.AccountDirectory
	Register       *auth.RegisterUserHandler
	ResetInit      *auth.InitializePasswordResetHandler
	ResetLookup    *auth.PasswordResetLookupHandler
	ResetFinalize  *auth.FinalizePasswordResetHandler
	ChangePassword *auth.ChangePasswordHandler
	UpdateProfile  *auth.UpdateProfileHandler

	// HashedIDs derives registered principal ids from their email.
	HashedIDs bool
}

type ServicesConfig struct {
	Notifier     auth.Notifier
	Captcha      auth.CaptchaVerifier
	ActivitySink auth.ActivitySink
	Logger       auth.Logger
	Clock        auth.Clock
	PhoneRegion  string
	HashedIDs    bool
}

// NewServices builds every command handler around one directory and the
// authenticator's password hasher.
func NewServices(cfg auth.Config, dir auth.AccountDirectory, authenticator *auth.Authenticator, sc ServicesConfig) *Services {
	if sc.Logger == nil {
		sc.Logger = auth.NewNopLogger()
	}
	if sc.Clock == nil {
		sc.Clock = time.Now
	}

	hasher := authenticator.Hasher()
	frontend := cfg.GetFrontendURL()
	ttl := cfg.GetPasswordResetTTL()

	return &Services{
		Authenticator: authenticator,
		Directory:     dir,
		Register: auth.NewRegisterUserHandler(dir, hasher, sc.Notifier).
			WithCaptcha(sc.Captcha).
			WithBaseURL(frontend).
			WithActivitySink(sc.ActivitySink).
			WithLogger(sc.Logger).
			WithClock(sc.Clock),
		ResetInit: auth.NewInitializePasswordResetHandler(dir, sc.Notifier).
			WithBaseURL(frontend).
			WithActivitySink(sc.ActivitySink).
			WithLogger(sc.Logger).
			WithClock(sc.Clock),
		ResetLookup: auth.NewPasswordResetLookupHandler(dir, ttl).
			WithClock(sc.Clock),
		ResetFinalize: auth.NewFinalizePasswordResetHandler(dir, hasher, ttl).
			WithActivitySink(sc.ActivitySink).
			WithLogger(sc.Logger).
			WithClock(sc.Clock),
		ChangePassword: auth.NewChangePasswordHandler(dir, hasher).
			WithActivitySink(sc.ActivitySink).
			WithLogger(sc.Logger),
		UpdateProfile: auth.NewUpdateProfileHandler(dir).
			WithPhoneRegion(sc.PhoneRegion).
			WithActivitySink(sc.ActivitySink).
			WithLogger(sc.Logger),
		HashedIDs: sc.HashedIDs,
	}
}
