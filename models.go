package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Principal is the canonical account record. One per email, shared by
// local and federated logins.
type Principal struct {
	bun.BaseModel            `bun:"table:principals,alias:prn"`
	ID                       uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email                    string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash             *string    `bun:"password_hash" json:"-"`
	Roles                    []Role     `bun:"roles,notnull" json:"roles"`
	Provider                 Provider   `bun:"provider,notnull" json:"provider"`
	Active                   bool       `bun:"active,notnull" json:"active"`
	ActivationToken          *string    `bun:"activation_token" json:"-"`
	PasswordResetToken       *string    `bun:"password_reset_token" json:"-"`
	PasswordResetRequestedAt *time.Time `bun:"password_reset_requested_at" json:"-"`
	FirstName                string     `bun:"first_name" json:"firstName,omitempty"`
	LastName                 string     `bun:"last_name" json:"lastName,omitempty"`
	City                     string     `bun:"city" json:"city,omitempty"`
	Address                  string     `bun:"address" json:"address,omitempty"`
	PhoneNumber              string     `bun:"phone_number" json:"phoneNumber,omitempty"`
	PostIndex                string     `bun:"post_index" json:"postIndex,omitempty"`
	LoginAttempts            int        `bun:"login_attempts,notnull,default:0" json:"-"`
	LoginAttemptAt           *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt               *time.Time `bun:"loggedin_at" json:"loggedInAt,omitempty"`
	CreatedAt                *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt                *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// Column names for partial saves.
const (
	ColumnProvider     = "provider"
	ColumnPasswordHash = "password_hash"
)

// ProfileColumns are the columns a profile update may write.
var ProfileColumns = []string{"first_name", "last_name", "city", "address", "phone_number", "post_index"}

// NewLocalPrincipal returns a pending USER principal for self registration.
func NewLocalPrincipal(email, passwordHash, activationToken string) *Principal {
	p := &Principal{
		Email:    NormalizeEmail(email),
		Roles:    []Role{RoleUser},
		Provider: ProviderLocal,
	}
	p.SetPasswordHash(passwordHash)
	p.MarkPendingActivation(activationToken)
	return p
}

// NewFederatedPrincipal returns an active USER principal without a password.
func NewFederatedPrincipal(identity FederatedIdentity) *Principal {
	p := &Principal{
		Email:    identity.Email,
		Roles:    []Role{RoleUser},
		Provider: identity.Provider,
	}
	p.FirstName, p.LastName = splitDisplayName(identity.DisplayName)
	p.MarkActivated()
	return p
}

// IsPending reports whether the principal still awaits activation.
func (p *Principal) IsPending() bool {
	return p.ActivationToken != nil
}

// MarkActivated clears the activation token.
func (p *Principal) MarkActivated() *Principal {
	p.ActivationToken = nil
	p.Active = true
	return p
}

// MarkPendingActivation sets a fresh activation token.
func (p *Principal) MarkPendingActivation(token string) *Principal {
	p.ActivationToken = &token
	p.Active = false
	return p
}

// SetPasswordHash stores hash, an empty hash clears it.
func (p *Principal) SetPasswordHash(hash string) *Principal {
	if hash == "" {
		p.PasswordHash = nil
		return p
	}
	p.PasswordHash = &hash
	return p
}

// HasPassword reports whether local login is possible.
func (p *Principal) HasPassword() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// PrimaryRole is the role embedded in issued tokens.
func (p *Principal) PrimaryRole() Role {
	if role := PrimaryRole(p.Roles); role != "" {
		return role
	}
	return RoleUser
}

// HasRole reports whether the principal holds role
func (p *Principal) HasRole(role Role) bool {
	return HasRole(p.Roles, role)
}

// DisplayName joins first and last name
func (p *Principal) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ClearPasswordReset removes any pending reset.
func (p *Principal) ClearPasswordReset() *Principal {
	p.PasswordResetToken = nil
	p.PasswordResetRequestedAt = nil
	return p
}
