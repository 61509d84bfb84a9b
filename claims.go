package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errClaimMissing = errors.New("required claim missing")

// Claims is the session token payload: sub, role, iat and exp.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

var _ jwt.ClaimsValidator = (*Claims)(nil)

// Validate is called by the jwt parser after the signature check.
func (c *Claims) Validate() error {
	switch {
	case c.RegisteredClaims.Subject == "":
		return errClaimMissing
	case c.Role == "":
		return errClaimMissing
	case c.RegisteredClaims.IssuedAt == nil:
		return errClaimMissing
	}
	return nil
}

// Subject returns the principal email
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserRole parses the role claim. Unknown roles are returned as-is with ok
// false so callers can treat them as having no privileges.
func (c *Claims) UserRole() (Role, bool) {
	return ParseRole(c.Role)
}

// IssuedAt returns the iat claim
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// Expires returns the exp claim
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}
