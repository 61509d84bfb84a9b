package social

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-shop-auth"
)

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	config        HTTPConfig
	logger        auth.Logger
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/oauth2")
	PathPrefix string

	// FrontendURL is the SPA origin; the callback redirects to
	// <FrontendURL>/oauth2/redirect with token or error in the query.
	FrontendURL string

	// RedirectPath is appended to FrontendURL (default: "/oauth2/redirect")
	RedirectPath string

	Logger auth.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(sa *SocialAuthenticator, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/oauth2"
	}
	if cfg.RedirectPath == "" {
		cfg.RedirectPath = "/oauth2/redirect"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = auth.NewNopLogger()
	}

	return &HTTPController{
		authenticator: sa,
		config:        cfg,
		logger:        logger,
	}
}

// RegisterRoutes registers social auth routes.
func (c *HTTPController) RegisterRoutes(r fiber.Router) {
	group := r.Group(c.config.PathPrefix)
	group.Get("/providers", c.ListProviders)
	group.Get("/authorize/:provider", c.BeginAuth)
	group.Get("/callback/:provider", c.Callback)
}

// ListProviders returns available social providers.
func (c *HTTPController) ListProviders(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"providers": c.authenticator.ListProviders(),
	})
}

// BeginAuth starts the OAuth flow.
func (c *HTTPController) BeginAuth(ctx *fiber.Ctx) error {
	redirect, err := c.authenticator.BeginAuth(
		ctx.UserContext(),
		ctx.Params("provider"),
		WithRedirectURL(c.safeRedirect(ctx.Query("redirect_uri"))),
	)
	if err != nil {
		return err
	}
	return ctx.Redirect(redirect.URL, fiber.StatusFound)
}

// Callback handles the OAuth callback. Failures redirect to the frontend
// with the error text code; success carries the session token.
func (c *HTTPController) Callback(ctx *fiber.Ctx) error {
	providerName := ctx.Params("provider")

	if errCode := ctx.Query("error"); errCode != "" {
		c.logger.Info("oauth2 consent declined", "provider", providerName, "error", errCode)
		return ctx.Redirect(c.errorRedirect("", ErrAccessDenied), fiber.StatusFound)
	}

	result, err := c.authenticator.CompleteAuth(
		ctx.UserContext(),
		providerName,
		ctx.Query("code"),
		ctx.Query("state"),
	)
	if err != nil {
		c.logger.Warn("oauth2 callback failed", "provider", providerName, "error", err)
		return ctx.Redirect(c.errorRedirect("", err), fiber.StatusFound)
	}

	target := appendQueryParam(c.redirectBase(result.RedirectURL), "token", result.Login.Token)
	return ctx.Redirect(target, fiber.StatusFound)
}

func (c *HTTPController) redirectBase(override string) string {
	if override != "" {
		return override
	}
	return strings.TrimRight(c.config.FrontendURL, "/") + c.config.RedirectPath
}

// safeRedirect only accepts redirect targets on the frontend origin.
func (c *HTTPController) safeRedirect(target string) string {
	if target == "" || c.config.FrontendURL == "" {
		return ""
	}
	if strings.HasPrefix(target, strings.TrimRight(c.config.FrontendURL, "/")+"/") {
		return target
	}
	return ""
}

func (c *HTTPController) errorRedirect(override string, err error) string {
	return appendQueryParam(c.redirectBase(override), "error", errorCode(err))
}

func errorCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return rich.TextCode
	}
	return auth.TextCodeUnauthorized
}

func appendQueryParam(rawURL, key, value string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
