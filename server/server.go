// Package server assembles the fiber application: token middleware, the
// route policy, account controllers and the social login routes.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/metrics"
	"github.com/goliatone/go-shop-auth/middleware/jwtware"
	"github.com/goliatone/go-shop-auth/social"
)

const (
	TextCodeInternal   = "INTERNAL_ERROR"
	TextCodeValidation = "VALIDATION_ERROR"
)

type Config struct {
	Auth   auth.Config
	Codec  *auth.TokenCodec
	Policy *auth.Policy
	Logger auth.Logger
	Clock  auth.Clock
	Debug  bool

	// ActivitySink receives access denied events.
	ActivitySink auth.ActivitySink

	// Optional components
	Metrics     *metrics.Metrics
	Social      *social.SocialAuthenticator
	HealthCheck func(ctx context.Context) error

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	adapter  router.Server[*fiber.App]
	app      *fiber.App
	config   Config
	services *Services
	logger   auth.Logger
}

func New(services *Services, cfg Config) *Server {
	if services == nil {
		panic("Missing Services in server...")
	}
	if cfg.Auth == nil {
		panic("Missing auth Config in server...")
	}
	if cfg.Codec == nil {
		panic("Missing TokenCodec in server...")
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Policy == nil {
		cfg.Policy = auth.DefaultPolicy()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	s := &Server{
		config:   cfg,
		services: services,
		logger:   cfg.Logger,
	}

	errorHandler := ErrorHandler(cfg.Logger, cfg.Debug)
	s.adapter = router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:               "shop-auth",
			ErrorHandler:          errorHandler,
			CaseSensitive:         true,
			StrictRouting:         false,
			ReadTimeout:           cfg.ReadTimeout,
			WriteTimeout:          cfg.WriteTimeout,
			DisableStartupMessage: true,
		})
	})
	s.app = s.adapter.WrappedRouter()

	s.routes(errorHandler)
	return s
}

func (s *Server) routes(errorHandler fiber.ErrorHandler) {
	cfg := s.config

	if cfg.Metrics != nil {
		s.app.Use(cfg.Metrics.Middleware())
	}

	jwtCfg := jwtware.ConfigFromAuth(cfg.Auth, cfg.Codec, s.services.Directory)
	jwtCfg.ErrorHandler = errorHandler
	jwtCfg.Clock = cfg.Clock
	jwtCfg.Logger = cfg.Logger
	jwtCfg.ActivitySink = cfg.ActivitySink

	s.app.Use(jwtware.New(jwtCfg))
	s.app.Use(jwtware.Authorize(cfg.Policy, jwtCfg))

	s.adapter.Router().Get("/health", s.health).
		SetName("health").
		SetSummary("Liveness and storage check")
	if cfg.Metrics != nil {
		s.app.Get("/metrics", cfg.Metrics.Handler())
	}

	api := s.app.Group("/api/v1")
	NewAuthController(s.services,
		WithControllerLogger(cfg.Logger),
		WithControllerClock(cfg.Clock),
		WithDebug(cfg.Debug),
	).RegisterRoutes(api)
	NewUserController(s.services, cfg.Logger).RegisterRoutes(api)

	if cfg.Social != nil {
		social.NewHTTPController(cfg.Social, social.HTTPConfig{
			FrontendURL: cfg.Auth.GetFrontendURL(),
			Logger:      cfg.Logger,
		}).RegisterRoutes(s.app)
	}
}

func (s *Server) health(c router.Context) error {
	if s.config.HealthCheck != nil {
		if err := s.config.HealthCheck(c.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			return c.JSON(fiber.StatusServiceUnavailable, fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.StatusOK, fiber.Map{"status": "ok"})
}

func (s *Server) App() *fiber.App { return s.app }

// Routes lists the routes registered through the router adapter.
func (s *Server) Routes() []router.RouteDefinition {
	return s.adapter.Router().Routes()
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.adapter.Serve(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.adapter.Shutdown(ctx)
}

// ErrorHandler renders errors as {"error", "text_code"} with the status
// carried by the error. Validation errors add a "fields" map. Errors that are
// neither rich nor fiber errors are hidden behind a generic 500.
func ErrorHandler(logger auth.Logger, debug bool) fiber.ErrorHandler {
	if logger == nil {
		logger = auth.NewNopLogger()
	}
	return func(c *fiber.Ctx, err error) error {
		status, body := ErrorBody(err)

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		} else if debug {
			logger.Debug("request rejected", "path", c.Path(), "status", status, "body", print.MaybePrettyJSON(body))
		}

		return c.Status(status).JSON(body)
	}
}

func ErrorBody(err error) (int, fiber.Map) {
	var rich *goerrors.Error
	var ferr *fiber.Error
	switch {
	case goerrors.As(err, &rich):
		status, body := jwtware.ErrorBody(err)
		if fields := rich.ValidationMap(); len(fields) > 0 {
			body["fields"] = fields
		}
		if body["text_code"] == "" && rich.Category == goerrors.CategoryValidation {
			body["text_code"] = TextCodeValidation
		}
		return status, body
	case errors.As(err, &ferr):
		return jwtware.ErrorBody(err)
	default:
		return fiber.StatusInternalServerError, fiber.Map{
			"error":     "internal server error",
			"text_code": TextCodeInternal,
		}
	}
}
