package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/activitymap"
	"github.com/goliatone/go-shop-auth/config"
	"github.com/goliatone/go-shop-auth/mailer"
	"github.com/goliatone/go-shop-auth/metrics"
	"github.com/goliatone/go-shop-auth/repository"
	"github.com/goliatone/go-shop-auth/server"
	"github.com/goliatone/go-shop-auth/social"
)

type App struct {
	config  *config.Config
	db      *bun.DB
	repo    repository.Manager
	logger  *auth.ZerologLogger
	metrics *metrics.Metrics
	srv     *server.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		auth.NewLogger(os.Stderr, "error", "console").Error("configuration", "error", err)
		os.Exit(1)
	}

	logger := auth.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := app.run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *auth.ZerologLogger) (*App, error) {
	db, err := repository.Connect(ctx, cfg.Database, logger.Named("persistence"))
	if err != nil {
		return nil, err
	}

	var opts []repository.PrincipalsOption
	if cfg.HashedIDs {
		opts = append(opts, repository.WithHashedIDs())
	}
	repo := repository.NewManager(db, opts...)
	repo.MustValidate()

	codec, err := auth.NewTokenCodecFromConfig(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	sink := auth.MultiSink{m, activitymap.LogSink(logger.Named("activity"), activitymap.WithRedactedKeys("email"))}

	authenticator := auth.NewAuthenticator(repo.Principals(), codec).
		WithLogger(logger.Named("auth")).
		WithActivitySink(sink).
		WithLoginThrottle(cfg.LoginMaxAttempts, cfg.LoginCoolDown)

	notifier, err := newNotifier(cfg, logger.Named("mailer"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var captcha auth.CaptchaVerifier
	if cfg.CaptchaEnabled() {
		captcha = auth.NewRecaptchaVerifier(cfg.CaptchaSecret, nil)
	}

	services := server.NewServices(cfg, repo.Principals(), authenticator, server.ServicesConfig{
		Notifier:     notifier,
		Captcha:      captcha,
		ActivitySink: sink,
		Logger:       logger.Named("commands"),
		PhoneRegion:  cfg.PhoneRegion,
		HashedIDs:    cfg.HashedIDs,
	})

	srv := server.New(services, server.Config{
		Auth:         cfg,
		Codec:        codec,
		Logger:       logger.Named("http"),
		Debug:        !cfg.IsProduction(),
		ActivitySink: sink,
		Metrics:      m,
		Social:       newSocial(cfg, authenticator, logger.Named("social")),
		HealthCheck:  db.PingContext,
	})

	return &App{
		config:  cfg,
		db:      db,
		repo:    repo,
		logger:  logger,
		metrics: m,
		srv:     srv,
	}, nil
}

func newNotifier(cfg *config.Config, logger auth.Logger) (auth.Notifier, error) {
	if !cfg.MailEnabled() {
		logger.Warn("smtp host not configured, mail links are logged")
		return mailer.NewLogNotifier(logger), nil
	}

	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		TLS:      cfg.SMTP.TLS,
		Timeout:  cfg.SMTP.Timeout,
	})

	n, err := mailer.NewNotifier(sender, mailer.Config{
		FromEmail:     cfg.Mail.FromEmail,
		FromName:      cfg.Mail.FromName,
		ShopName:      cfg.Mail.ShopName,
		ResetValidFor: cfg.GetPasswordResetTTL(),
	})
	if err != nil {
		return nil, err
	}
	return n.WithLogger(logger), nil
}

// newSocial returns nil when no provider has credentials.
func newSocial(cfg *config.Config, login social.FederatedLogin, logger auth.Logger) *social.SocialAuthenticator {
	var opts []social.SocialAuthOption

	clients := []struct {
		provider auth.Provider
		client   config.Client
		build    func(social.ProviderConfig) *social.OAuth2Provider
	}{
		{auth.ProviderGoogle, cfg.OAuth.Google, social.NewGoogleProvider},
		{auth.ProviderGitHub, cfg.OAuth.GitHub, social.NewGitHubProvider},
		{auth.ProviderFacebook, cfg.OAuth.Facebook, social.NewFacebookProvider},
	}
	for _, c := range clients {
		if !c.client.Enabled() {
			continue
		}
		opts = append(opts, social.WithProvider(c.build(social.ProviderConfig{
			ClientID:     c.client.ID,
			ClientSecret: c.client.Secret,
			RedirectURL:  cfg.CallbackURL(c.provider),
		})))
		logger.Info("social provider enabled", "provider", c.provider.Slug())
	}

	if len(opts) == 0 {
		return nil
	}

	opts = append(opts, social.WithLogger(logger))
	return social.NewSocialAuthenticator(login, social.SocialAuthConfig{
		DefaultRedirectURL: cfg.GetFrontendURL() + "/oauth2/redirect",
		StateSecret:        cfg.OAuth.StateSecret,
		StateTTL:           cfg.OAuth.StateTTL,
	}, opts...)
}

func (a *App) run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- a.srv.Listen(a.config.ListenAddr)
	}()

	select {
	case err := <-errc:
		_ = a.db.Close()
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.srv.Shutdown(shutdownCtx)
	if cerr := a.db.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
