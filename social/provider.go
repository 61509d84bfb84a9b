package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	auth "github.com/goliatone/go-shop-auth"
)

const maxUserInfoBytes = 1 << 20

// SocialProvider is an OAuth2 authorization code provider that can return
// the raw user attribute map consumed by auth.IdentityResolver.
type SocialProvider interface {
	// Name returns the provider tag.
	Name() auth.Provider

	// AuthCodeURL returns the consent URL. verifier is the PKCE code verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// Attributes fetches the user's profile attributes using the access token.
	Attributes(ctx context.Context, token *oauth2.Token) (map[string]any, error)
}

// ProviderConfig holds client credentials for one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuth2Provider is a SocialProvider backed by golang.org/x/oauth2. When
// emailsURL is set and the profile has no email, the list it returns is
// stored under attrs["emails"].
type OAuth2Provider struct {
	name        auth.Provider
	config      *oauth2.Config
	userInfoURL string
	emailsURL   string
	client      *http.Client
}

var _ SocialProvider = (*OAuth2Provider)(nil)

// NewOAuth2Provider creates a provider for name against endpoint.
func NewOAuth2Provider(name auth.Provider, endpoint oauth2.Endpoint, userInfoURL string, cfg ProviderConfig) *OAuth2Provider {
	return &OAuth2Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

// NewGoogleProvider configures the Google OpenID user info endpoint.
func NewGoogleProvider(cfg ProviderConfig) *OAuth2Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return NewOAuth2Provider(auth.ProviderGoogle, endpoints.Google,
		"https://openidconnect.googleapis.com/v1/userinfo", cfg)
}

// NewGitHubProvider reads /user and falls back to /user/emails for accounts
// with a private email.
func NewGitHubProvider(cfg ProviderConfig) *OAuth2Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user", "user:email"}
	}
	p := NewOAuth2Provider(auth.ProviderGitHub, endpoints.GitHub, "https://api.github.com/user", cfg)
	p.emailsURL = "https://api.github.com/user/emails"
	return p
}

// NewFacebookProvider uses the Graph API /me endpoint.
func NewFacebookProvider(cfg ProviderConfig) *OAuth2Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"email", "public_profile"}
	}
	return NewOAuth2Provider(auth.ProviderFacebook, endpoints.Facebook,
		"https://graph.facebook.com/me?fields=id,name,email,first_name,last_name", cfg)
}

// WithEndpoints overrides the provider URLs. Used against test servers.
func (p *OAuth2Provider) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL, emailsURL string) *OAuth2Provider {
	p.config.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	p.emailsURL = emailsURL
	return p
}

// WithHTTPClient sets the client used for token exchange and user info.
func (p *OAuth2Provider) WithHTTPClient(client *http.Client) *OAuth2Provider {
	p.client = client
	return p
}

func (p *OAuth2Provider) Name() auth.Provider {
	return p.name
}

func (p *OAuth2Provider) AuthCodeURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return p.config.AuthCodeURL(state, opts...)
}

func (p *OAuth2Provider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	return p.config.Exchange(p.context(ctx), code, opts...)
}

func (p *OAuth2Provider) Attributes(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	client := p.config.Client(p.context(ctx), token)

	attrs := map[string]any{}
	if err := p.getJSON(ctx, client, p.userInfoURL, &attrs); err != nil {
		return nil, err
	}

	if p.emailsURL != "" {
		if email, _ := attrs["email"].(string); email == "" {
			var emails []map[string]any
			if err := p.getJSON(ctx, client, p.emailsURL, &emails); err != nil {
				return nil, err
			}
			list := make([]any, 0, len(emails))
			for _, e := range emails {
				list = append(list, e)
			}
			attrs["emails"] = list
		}
	}

	return attrs, nil
}

func (p *OAuth2Provider) context(ctx context.Context) context.Context {
	if p.client != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	return ctx
}

func (p *OAuth2Provider) getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return &ProviderError{Provider: p.name.Slug(), Operation: "user_info", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxUserInfoBytes))
	if err != nil {
		return &ProviderError{Provider: p.name.Slug(), Operation: "user_info", Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &ProviderError{
			Provider:  p.name.Slug(),
			Operation: "user_info",
			Status:    res.StatusCode,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{
			Provider:  p.name.Slug(),
			Operation: "user_info",
			Err:       fmt.Errorf("decode user info: %w", err),
		}
	}
	return nil
}
