package auth

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// FederatedIdentity is the canonical view of a provider profile.
type FederatedIdentity struct {
	Provider    Provider
	Email       string
	DisplayName string
	Subject     string
}

// IdentityResolver turns raw provider attributes into a FederatedIdentity.
// Each supported provider has its own typed profile shape.
type IdentityResolver struct{}

// NewIdentityResolver returns a resolver for google, github and facebook.
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{}
}

type providerProfile interface {
	identity() (email, displayName, subject string)
}

type googleProfile struct {
	Sub        string `mapstructure:"sub"`
	Email      string `mapstructure:"email"`
	Name       string `mapstructure:"name"`
	GivenName  string `mapstructure:"given_name"`
	FamilyName string `mapstructure:"family_name"`
}

func (p googleProfile) identity() (string, string, string) {
	return p.Email, firstNonEmpty(p.Name, joinName(p.GivenName, p.FamilyName)), p.Sub
}

type githubEmail struct {
	Email    string `mapstructure:"email"`
	Primary  bool   `mapstructure:"primary"`
	Verified bool   `mapstructure:"verified"`
}

type githubProfile struct {
	ID     string        `mapstructure:"id"`
	Login  string        `mapstructure:"login"`
	Name   string        `mapstructure:"name"`
	Email  string        `mapstructure:"email"`
	Emails []githubEmail `mapstructure:"emails"`
}

func (p githubProfile) identity() (string, string, string) {
	email := p.Email
	if email == "" {
		email = pickGitHubEmail(p.Emails)
	}
	return email, firstNonEmpty(p.Name, p.Login), p.ID
}

func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified && e.Email != "" {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified && e.Email != "" {
			return e.Email
		}
	}
	return ""
}

type facebookProfile struct {
	ID        string `mapstructure:"id"`
	Email     string `mapstructure:"email"`
	Name      string `mapstructure:"name"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

func (p facebookProfile) identity() (string, string, string) {
	return p.Email, firstNonEmpty(p.Name, joinName(p.FirstName, p.LastName)), p.ID
}

// Resolve maps attrs for provider. Fails with ErrUnsupportedProvider for
// LOCAL or unknown providers and ErrIncompleteIdentity when no email can be
// extracted.
func (r *IdentityResolver) Resolve(provider Provider, attrs map[string]any) (FederatedIdentity, error) {
	var profile providerProfile
	var err error

	switch provider {
	case ProviderGoogle:
		var p googleProfile
		err = decodeProfile(attrs, &p)
		profile = p
	case ProviderGitHub:
		var p githubProfile
		err = decodeProfile(attrs, &p)
		profile = p
	case ProviderFacebook:
		var p facebookProfile
		err = decodeProfile(attrs, &p)
		profile = p
	default:
		return FederatedIdentity{}, fmt.Errorf("resolve %q: %w", provider, ErrUnsupportedProvider)
	}

	if err != nil {
		return FederatedIdentity{}, fmt.Errorf("decode %s profile: %w", provider.Slug(), ErrIncompleteIdentity)
	}

	email, name, subject := profile.identity()
	email = NormalizeEmail(email)
	if email == "" {
		return FederatedIdentity{}, fmt.Errorf("%s profile: %w", provider.Slug(), ErrIncompleteIdentity)
	}

	return FederatedIdentity{
		Provider:    provider,
		Email:       email,
		DisplayName: strings.TrimSpace(name),
		Subject:     subject,
	}, nil
}

func decodeProfile(attrs map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(attrs)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func splitDisplayName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}
