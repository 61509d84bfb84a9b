package server

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/middleware/jwtware"
)

// AuthControllerRoutes are relative to the group the controller is mounted on.
type AuthControllerRoutes struct {
	Login         string
	Register      string
	Activate      string
	Forgot        string
	PasswordReset string
	EditPassword  string
}

type AuthController struct {
	Debug    bool
	Logger   auth.Logger
	Services *Services
	Routes   *AuthControllerRoutes
	Clock    auth.Clock
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger auth.Logger) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if logger != nil {
			a.Logger = logger
		}
		return a
	}
}

func WithControllerClock(clock auth.Clock) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if clock != nil {
			a.Clock = clock
		}
		return a
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Debug = debug
		return a
	}
}

func WithRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if routes != nil {
			a.Routes = routes
		}
		return a
	}
}

func NewAuthController(services *Services, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   auth.NewNopLogger(),
		Services: services,
		Clock:    time.Now,
		Routes: &AuthControllerRoutes{
			Login:         "/auth/login",
			Register:      "/registration",
			Activate:      "/registration/activate/:code",
			Forgot:        "/auth/forgot/:email",
			PasswordReset: "/auth/reset",
			EditPassword:  "/auth/edit/password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Services == nil || c.Services.Authenticator == nil {
		panic("Missing Authenticator in auth controller...")
	}

	return c
}

func (a *AuthController) RegisterRoutes(r fiber.Router) {
	r.Post(a.Routes.Login, a.LoginPost)
	r.Post(a.Routes.Register, a.RegistrationCreate)
	r.Get(a.Routes.Activate, a.Activate)
	r.Get(a.Routes.Forgot, a.PasswordResetRequest)
	r.Get(a.Routes.PasswordReset+"/:code", a.PasswordResetLookup)
	r.Post(a.Routes.PasswordReset, a.PasswordResetExecute)
	r.Put(a.Routes.EditPassword, a.EditPassword)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return auth.ValidationError(err, "invalid login request")
	}

	if a.Debug {
		a.Logger.Debug("login attempt", "email", payload.Email)
	}

	result, err := a.Services.Authenticator.LoginLocal(c.UserContext(), payload.Email, payload.Password, a.Clock())
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := auth.RegisterUserMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	var created *auth.Principal
	payload.UseHashid = a.Services.HashedIDs
	payload.OnResponse = func(p *auth.Principal) {
		created = p
	}

	if err := a.Services.Register.Execute(c.UserContext(), payload); err != nil {
		return err
	}

	if a.Debug {
		a.Logger.Debug("user registered", "user", print.MaybePrettyJSON(created))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User successfully registered.",
		"user":    created,
	})
}

func (a *AuthController) Activate(c *fiber.Ctx) error {
	if _, err := a.Services.Authenticator.Activate(c.UserContext(), c.Params("code")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User successfully activated."})
}

// PasswordResetRequest answers the same way whether or not the email is
// registered.
func (a *AuthController) PasswordResetRequest(c *fiber.Ctx) error {
	req := auth.InitializePasswordResetMessage{
		Email: strings.TrimSpace(c.Params("email")),
		OnResponse: func(resp *auth.InitializePasswordResetResponse) {
			if a.Debug {
				a.Logger.Debug("password reset requested", "sent", resp.Sent)
			}
		},
	}

	if err := a.Services.ResetInit.Execute(c.UserContext(), req); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Reset password code is sent to your email."})
}

func (a *AuthController) PasswordResetLookup(c *fiber.Ctx) error {
	var principal *auth.Principal
	req := auth.PasswordResetLookupMessage{
		Code: c.Params("code"),
		OnResponse: func(p *auth.Principal) {
			principal = p
		},
	}

	if err := a.Services.ResetLookup.Execute(c.UserContext(), req); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"email": principal.Email})
}

func (a *AuthController) PasswordResetExecute(c *fiber.Ctx) error {
	payload := auth.FinalizePasswordResetMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := a.Services.ResetFinalize.Execute(c.UserContext(), payload); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Password successfully changed!"})
}

func (a *AuthController) EditPassword(c *fiber.Ctx) error {
	ac := jwtware.FromContext(c)
	if ac.Principal == nil {
		return auth.ErrUnauthorized
	}

	payload := auth.ChangePasswordMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}
	payload.PrincipalID = ac.Principal.ID.String()

	if err := a.Services.ChangePassword.Execute(c.UserContext(), payload); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Your password successfully changed!"})
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(fiber.StatusBadRequest)
}
