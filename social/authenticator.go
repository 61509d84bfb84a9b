package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/oauth2"

	auth "github.com/goliatone/go-shop-auth"
)

// FederatedLogin reconciles provider attributes into a principal and issues
// a session token. *auth.Authenticator implements it.
type FederatedLogin interface {
	LoginFederated(ctx context.Context, provider auth.Provider, attrs map[string]any, now time.Time) (*auth.LoginResult, error)
}

var _ FederatedLogin = (*auth.Authenticator)(nil)

// SocialAuthenticator orchestrates the authorization code flow.
type SocialAuthenticator struct {
	providers    map[auth.Provider]SocialProvider
	stateManager StateManager
	login        FederatedLogin
	logger       auth.Logger
	clock        auth.Clock
	config       SocialAuthConfig
}

// SocialAuthConfig configures the social authenticator.
type SocialAuthConfig struct {
	DefaultRedirectURL string
	// StateSecret seeds the state encryption and signing keys.
	StateSecret string
	StateTTL    time.Duration
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(login FederatedLogin, config SocialAuthConfig, opts ...SocialAuthOption) *SocialAuthenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = defaultStateTTL
	}

	sa := &SocialAuthenticator{
		providers: make(map[auth.Provider]SocialProvider),
		login:     login,
		logger:    auth.NewNopLogger(),
		clock:     time.Now,
		config:    cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.stateManager == nil && cfg.StateSecret != "" {
		if sm, err := NewStateManagerFromSecret(cfg.StateSecret, cfg.StateTTL); err == nil {
			sa.stateManager = sm.WithClock(sa.clock)
		}
	}

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.stateManager = sm
	}
}

func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

func WithClock(clock auth.Clock) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if clock != nil {
			sa.clock = clock
		}
	}
}

func (sa *SocialAuthenticator) provider(name string) (SocialProvider, error) {
	tag, ok := auth.ParseProvider(name)
	if !ok || !tag.IsFederated() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	p, ok := sa.providers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// BeginAuth starts the OAuth flow for a provider.
func (sa *SocialAuthenticator) BeginAuth(ctx context.Context, providerName string, opts ...BeginAuthOption) (*AuthRedirect, error) {
	provider, err := sa.provider(providerName)
	if err != nil {
		return nil, err
	}

	if sa.stateManager == nil {
		return nil, ErrInvalidState
	}

	cfg := &beginAuthConfig{redirectURL: sa.config.DefaultRedirectURL}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	now := sa.clock()
	verifier := oauth2.GenerateVerifier()
	state := &OAuthState{
		Provider:     provider.Name().Slug(),
		CodeVerifier: verifier,
		RedirectURL:  cfg.redirectURL,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(sa.config.StateTTL).Unix(),
	}

	stateToken, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken, verifier),
		State:    stateToken,
		Provider: provider.Name(),
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback and logs the principal in.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*AuthResult, error) {
	if code == "" || stateToken == "" {
		return nil, ErrMissingParams
	}
	if sa.stateManager == nil {
		return nil, ErrInvalidState
	}

	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrInvalidState
	}

	provider, err := sa.provider(providerName)
	if err != nil {
		return nil, err
	}

	if state.Provider != provider.Name().Slug() {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	token, err := provider.Exchange(ctx, code, state.CodeVerifier)
	if err != nil {
		sa.logger.Warn("oauth2 code exchange failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrTokenExchangeFailed, state.Provider, "exchange", err)
	}

	attrs, err := provider.Attributes(ctx, token)
	if err != nil {
		sa.logger.Warn("oauth2 user info failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrUserInfoFailed, state.Provider, "user_info", err)
	}

	login, err := sa.login.LoginFederated(ctx, provider.Name(), attrs, sa.clock())
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Login:       login,
		Provider:    provider.Name(),
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns the registered provider slugs, sorted.
func (sa *SocialAuthenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name.Slug())
	}
	sort.Strings(names)
	return names
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider auth.Provider
}

// AuthResult contains the result of a successful authentication.
type AuthResult struct {
	Login       *auth.LoginResult
	Provider    auth.Provider
	RedirectURL string
}

// BeginAuthOption configures the auth initiation.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
}

// WithRedirectURL sets the post-auth redirect URL.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		if url != "" {
			c.redirectURL = url
		}
	}
}
