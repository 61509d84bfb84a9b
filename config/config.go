// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-shop-auth"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SHOP_AUTH_"

type Config struct {
	Env        string
	ListenAddr string
	Database   Database
	HashedIDs  bool

	SigningKey       string
	TokenExpiration  int
	TokenHeader      string
	AuthScheme       string
	PasswordResetTTL time.Duration
	FrontendURL      string
	PublicURL        string

	LoginMaxAttempts int
	LoginCoolDown    time.Duration

	LogLevel  string
	LogFormat string

	SMTP  SMTP
	Mail  Mail
	OAuth OAuth

	CaptchaSecret string
	PhoneRegion   string
}

// Database holds the storage settings. It satisfies the persistence
// client configuration.
type Database struct {
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (d Database) GetDSN() string                { return d.DSN }
func (d Database) GetDebug() bool                { return d.Debug }
func (d Database) GetPingTimeout() time.Duration { return d.PingTimeout }
func (d Database) GetOtelIdentifier() string     { return "" }

// GetDriver is postgres for postgres:// and postgresql:// DSNs and sqlite otherwise.
func (d Database) GetDriver() string {
	if strings.HasPrefix(d.DSN, "postgres://") || strings.HasPrefix(d.DSN, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func (d Database) GetServer() string {
	if d.GetDriver() != "postgres" {
		return ""
	}
	u, err := url.Parse(d.DSN)
	if err != nil {
		return ""
	}
	return u.Host
}

func (d Database) GetDatabase() string {
	if d.GetDriver() == "postgres" {
		u, err := url.Parse(d.DSN)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(u.Path, "/")
	}
	name := strings.TrimPrefix(d.DSN, "file:")
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return name
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.PingTimeout, validation.Required),
	)
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Timeout  time.Duration
}

type Mail struct {
	FromEmail string
	FromName  string
	ShopName  string
}

// OAuth holds client credentials per provider. A provider with an empty
// client id is not registered.
type OAuth struct {
	StateSecret string
	StateTTL    time.Duration
	Google      Client
	GitHub      Client
	Facebook    Client
}

type Client struct {
	ID     string
	Secret string
}

func (c Client) Enabled() bool { return c.ID != "" && c.Secret != "" }

var _ auth.Config = (*Config)(nil)

// Load reads .env (optional) and the environment, then validates.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read env file")
	}

	cfg := FromEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from lookup without validating it.
func FromEnv(lookup func(string) (string, bool)) *Config {
	env := func(key, fallback string) string {
		if v, ok := lookup(Prefix + key); ok {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		Env:              env("ENV", "development"),
		ListenAddr:       env("LISTEN_ADDR", ":8080"),
		HashedIDs:        parseBool(env("HASHED_IDS", "false")),
		SigningKey:       env("JWT_SECRET", ""),
		TokenExpiration:  parseInt(env("JWT_EXPIRATION", ""), auth.DefaultTokenTTL),
		TokenHeader:      env("JWT_HEADER", "Authorization"),
		AuthScheme:       env("JWT_AUTH_SCHEME", ""),
		PasswordResetTTL: parseDuration(env("PASSWORD_RESET_TTL", ""), auth.DefaultPasswordResetTTL),
		FrontendURL:      strings.TrimSuffix(env("FRONTEND_URL", "http://localhost:3000"), "/"),
		PublicURL:        strings.TrimSuffix(env("PUBLIC_URL", "http://localhost:8080"), "/"),
		LoginMaxAttempts: parseInt(env("LOGIN_MAX_ATTEMPTS", ""), 5),
		LoginCoolDown:    parseDuration(env("LOGIN_COOL_DOWN", ""), 24*time.Hour),
		LogLevel:         env("LOG_LEVEL", "info"),
		LogFormat:        env("LOG_FORMAT", "json"),
		Database: Database{
			DSN:         env("DSN", "file:shop-auth.db?cache=shared"),
			Debug:       parseBool(env("DB_DEBUG", "false")),
			PingTimeout: parseDuration(env("DB_PING_TIMEOUT", ""), 5*time.Second),
		},
		SMTP: SMTP{
			Host:     env("SMTP_HOST", ""),
			Port:     parseInt(env("SMTP_PORT", ""), 587),
			Username: env("SMTP_USERNAME", ""),
			Password: env("SMTP_PASSWORD", ""),
			TLS:      parseBool(env("SMTP_TLS", "false")),
			Timeout:  parseDuration(env("SMTP_TIMEOUT", ""), 15*time.Second),
		},
		Mail: Mail{
			FromEmail: env("MAIL_FROM", "no-reply@localhost"),
			FromName:  env("MAIL_FROM_NAME", ""),
			ShopName:  env("SHOP_NAME", "Perfume shop"),
		},
		OAuth: OAuth{
			StateSecret: env("OAUTH_STATE_SECRET", ""),
			StateTTL:    parseDuration(env("OAUTH_STATE_TTL", ""), 10*time.Minute),
			Google:      Client{ID: env("GOOGLE_CLIENT_ID", ""), Secret: env("GOOGLE_CLIENT_SECRET", "")},
			GitHub:      Client{ID: env("GITHUB_CLIENT_ID", ""), Secret: env("GITHUB_CLIENT_SECRET", "")},
			Facebook:    Client{ID: env("FACEBOOK_CLIENT_ID", ""), Secret: env("FACEBOOK_CLIENT_SECRET", "")},
		},
		CaptchaSecret: env("RECAPTCHA_SECRET", ""),
		PhoneRegion:   env("PHONE_REGION", auth.DefaultPhoneRegion),
	}

	if cfg.OAuth.StateSecret == "" {
		cfg.OAuth.StateSecret = cfg.SigningKey
	}
	return cfg
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.Database),
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.TokenHeader, validation.Required),
		validation.Field(&c.FrontendURL, validation.Required, is.URL),
		validation.Field(&c.PublicURL, validation.Required, is.URL),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
		validation.Field(&c.LoginMaxAttempts, validation.Min(0)),
		validation.Field(&c.SMTP),
		validation.Field(&c.Mail),
	)
	if err != nil {
		return auth.ValidationError(err, "invalid configuration")
	}
	return nil
}

func (s SMTP) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&s.Port, validation.Min(1), validation.Max(65535)),
	}
	if s.Username != "" {
		rules = append(rules, validation.Field(&s.Password, validation.Required))
	}
	return validation.ValidateStruct(&s, rules...)
}

func (m Mail) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.FromEmail, validation.Required),
	)
}

func (c *Config) GetSigningKey() string              { return c.SigningKey }
func (c *Config) GetTokenExpiration() int            { return c.TokenExpiration }
func (c *Config) GetTokenHeader() string             { return c.TokenHeader }
func (c *Config) GetAuthScheme() string              { return c.AuthScheme }
func (c *Config) GetPasswordResetTTL() time.Duration { return c.PasswordResetTTL }
func (c *Config) GetFrontendURL() string             { return c.FrontendURL }
func (c *Config) IsProduction() bool                 { return strings.EqualFold(c.Env, "production") }
func (c *Config) MailEnabled() bool                  { return c.SMTP.Host != "" }
func (c *Config) CaptchaEnabled() bool               { return c.CaptchaSecret != "" }
func (c *Config) CallbackURL(provider auth.Provider) string {
	return c.PublicURL + "/oauth2/callback/" + provider.Slug()
}

func parseInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// parseDuration accepts Go durations ("30m") or plain seconds.
func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
