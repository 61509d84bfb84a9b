package auth

import "strings"

// Role is the closed set of principal roles
type Role string

const (
	// RoleUser is a shopper
	RoleUser Role = "USER"
	// RoleAdmin manages catalog, orders and users
	RoleAdmin Role = "ADMIN"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole safely parses a string into a Role, case insensitive
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// PrimaryRole picks the role embedded in issued tokens: ADMIN wins over USER.
func PrimaryRole(roles []Role) Role {
	primary := Role("")
	for _, r := range roles {
		switch r {
		case RoleAdmin:
			return RoleAdmin
		case RoleUser:
			primary = RoleUser
		}
	}
	return primary
}

// HasRole reports whether roles contains role
func HasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Provider tags the origin of the most recent authentication
type Provider string

const (
	ProviderLocal    Provider = "LOCAL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderGitHub   Provider = "GITHUB"
	ProviderFacebook Provider = "FACEBOOK"
)

// ParseProvider maps a registration id (e.g. "google") to a Provider.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return p, true
	default:
		return p, false
	}
}

// Slug is the lower case registration id used in URLs.
func (p Provider) Slug() string {
	return strings.ToLower(string(p))
}

// IsFederated reports whether the provider is an external identity provider.
func (p Provider) IsFederated() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return true
	default:
		return false
	}
}
