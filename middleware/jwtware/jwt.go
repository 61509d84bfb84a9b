package jwtware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-shop-auth"
)

var (
	// ErrJWTMissingOrMalformed is returned by extractors when no token is present
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

const (
	DefaultContextKey  = "auth"
	DefaultTokenLookup = "header:" + fiber.HeaderAuthorization
)

// PrincipalLookup is the part of auth.AccountDirectory the middleware needs.
type PrincipalLookup interface {
	FindByEmail(ctx context.Context, email string) (*auth.Principal, error)
}

// ValidationListener runs after a token was verified and its principal loaded.
// Returning an error aborts the request through the ErrorHandler.
type ValidationListener func(c *fiber.Ctx, ac auth.AuthContext) error

// Config defines the config for the auth middleware
type Config struct {
	// Filter defines a function to skip middleware.
	// Optional. Default: nil
	Filter func(*fiber.Ctx) bool

	// SuccessHandler runs once the AuthContext is stored.
	// Optional. Default: c.Next()
	SuccessHandler fiber.Handler

	// ErrorHandler renders token, lookup and access errors.
	// Optional. Default: JSON body {error, text_code} with the error status.
	ErrorHandler fiber.ErrorHandler

	// Codec verifies session tokens. Required.
	Codec *auth.TokenCodec

	// Directory resolves the token subject. Required.
	Directory PrincipalLookup

	// ContextKey is the fiber Locals key for the auth.AuthContext.
	// Optional. Default: "auth".
	ContextKey string

	// TokenLookup is a string in the form of "<source>:<name>" used to
	// extract the token. Possible values: "header:<name>", "query:<name>",
	// "param:<name>", "cookie:<name>".
	// Optional. Default: "header:Authorization".
	TokenLookup string

	// AuthScheme is stripped from header values when set, e.g. "Bearer".
	// Optional. Default: "" (raw header value is the token).
	AuthScheme string

	// Clock is used for token expiry.
	// Optional. Default: time.Now
	Clock auth.Clock

	// ActivitySink receives access denied events from Authorize.
	// Optional.
	ActivitySink auth.ActivitySink

	// Logger
	// Optional.
	Logger auth.Logger

	ValidationListeners []ValidationListener
}

// ConfigFromAuth builds a Config from the service configuration.
func ConfigFromAuth(cfg auth.Config, codec *auth.TokenCodec, dir PrincipalLookup) Config {
	return Config{
		Codec:       codec,
		Directory:   dir,
		TokenLookup: "header:" + cfg.GetTokenHeader(),
		AuthScheme:  cfg.GetAuthScheme(),
	}
}

// New verifies the request token and stores an auth.AuthContext. Requests
// without a token continue as anonymous; authorization happens in Authorize.
func New(config ...Config) fiber.Handler {
	cfg := makeCfg(config)
	extractor := cfg.extractor()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractor(c)
		if err != nil {
			store(c, cfg.ContextKey, auth.Anonymous())
			return cfg.SuccessHandler(c)
		}

		claims, err := cfg.Codec.Verify(raw, cfg.Clock())
		if err != nil {
			cfg.Logger.Debug("token rejected", "error", err, "path", c.Path())
			return cfg.ErrorHandler(c, err)
		}

		principal, err := cfg.Directory.FindByEmail(c.UserContext(), claims.Subject())
		if err != nil {
			if errors.Is(err, auth.ErrPrincipalNotFound) {
				return cfg.ErrorHandler(c, auth.ErrUnknownSubject)
			}
			cfg.Logger.Error("principal lookup failed", "error", err, "subject", claims.Subject())
			return cfg.ErrorHandler(c, err)
		}

		role, _ := claims.UserRole()
		ac := auth.AuthContext{
			Principal: principal,
			Role:      role,
			Claims:    claims,
		}
		store(c, cfg.ContextKey, ac)

		for _, listener := range cfg.ValidationListeners {
			if err := listener(c, ac); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		return cfg.SuccessHandler(c)
	}
}

// Authorize enforces policy using the AuthContext stored by New.
func Authorize(policy *auth.Policy, config ...Config) fiber.Handler {
	cfg := makeCfg(config)
	if policy == nil {
		policy = auth.DefaultPolicy()
	}

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		ac := FromContext(c, cfg.ContextKey)
		decision := policy.Evaluate(c.Method(), c.Path(), ac)
		if decision == auth.Allow {
			return c.Next()
		}

		if cfg.ActivitySink != nil {
			event := auth.ActivityEvent{
				EventType:  auth.ActivityEventAccessDenied,
				OccurredAt: cfg.Clock(),
				Metadata: map[string]any{
					"method":   c.Method(),
					"path":     c.Path(),
					"decision": decision.String(),
				},
			}
			if ac.Principal != nil {
				event.UserID = ac.Principal.ID.String()
				event.Actor = auth.ActorRef{ID: event.UserID, Type: "principal"}
			}
			if err := cfg.ActivitySink.Record(c.UserContext(), event); err != nil {
				cfg.Logger.Warn("activity sink failed", "error", err)
			}
		}

		return cfg.ErrorHandler(c, decision.Err())
	}
}

// FromContext returns the AuthContext stored by New, or an anonymous one.
func FromContext(c *fiber.Ctx, key ...string) auth.AuthContext {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	if ac, ok := c.Locals(k).(auth.AuthContext); ok {
		return ac
	}
	if ac, ok := auth.FromContext(c.UserContext()); ok {
		return ac
	}
	return auth.Anonymous()
}

func store(c *fiber.Ctx, key string, ac auth.AuthContext) {
	c.Locals(key, ac)
	c.SetUserContext(auth.WithAuthContext(c.UserContext(), ac))
}

// DefaultErrorHandler writes the error taxonomy as JSON.
func DefaultErrorHandler(c *fiber.Ctx, err error) error {
	status, body := ErrorBody(err)
	return c.Status(status).JSON(body)
}

// ErrorBody maps err to a status code and the {error, text_code} payload.
func ErrorBody(err error) (int, fiber.Map) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		status := rich.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}
		return status, fiber.Map{"error": rich.Message, "text_code": rich.TextCode}
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr.Code, fiber.Map{"error": ferr.Message, "text_code": ""}
	}

	return fiber.StatusUnauthorized, fiber.Map{"error": err.Error(), "text_code": auth.TextCodeUnauthorized}
}

func makeCfg(config []Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.TokenLookup == "" || strings.HasSuffix(cfg.TokenLookup, ":") {
		cfg.TokenLookup = DefaultTokenLookup
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.NewNopLogger()
	}
	return cfg
}

func (cfg Config) extractor() func(*fiber.Ctx) (string, error) {
	source, name, _ := strings.Cut(cfg.TokenLookup, ":")
	source = strings.TrimSpace(source)
	name = strings.TrimSpace(name)

	switch source {
	case "query":
		return jwtFromQuery(name)
	case "param":
		return jwtFromParam(name)
	case "cookie":
		return jwtFromCookie(name)
	default:
		return jwtFromHeader(name, cfg.AuthScheme)
	}
}
