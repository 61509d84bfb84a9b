package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxLoginAttempts before the account is throttled
	MaxLoginAttempts = 5
	// CoolDownPeriod is the throttle window
	CoolDownPeriod = 24 * time.Hour
)

// LoginResult is returned by successful logins.
type LoginResult struct {
	Token     string     `json:"token"`
	Principal *Principal `json:"user"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// FederatedLinkPolicy may veto attaching a federated login to an existing
// principal. Returning an error aborts the login with that error.
type FederatedLinkPolicy func(ctx context.Context, existing *Principal, identity FederatedIdentity) error

// PermissiveLinkPolicy links any federated identity whose email matches.
func PermissiveLinkPolicy(context.Context, *Principal, FederatedIdentity) error {
	return nil
}

// SameProviderLinkPolicy only links principals that were created by, or
// last used, the same provider. Local accounts are never linked.
func SameProviderLinkPolicy(_ context.Context, existing *Principal, identity FederatedIdentity) error {
	if existing.Provider != identity.Provider {
		return fmt.Errorf("principal provider %s: %w", existing.Provider, ErrFederatedLinkRejected)
	}
	return nil
}

// Authenticator runs local login, federated login and activation against an
// AccountDirectory and issues session tokens.
type Authenticator struct {
	directory        AccountDirectory
	codec            *TokenCodec
	resolver         *IdentityResolver
	hasher           PasswordAuthenticator
	linkPolicy       FederatedLinkPolicy
	logger           Logger
	activitySink     ActivitySink
	maxLoginAttempts int
	coolDown         time.Duration
	clock            Clock
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(directory AccountDirectory, codec *TokenCodec) *Authenticator {
	return &Authenticator{
		directory:        directory,
		codec:            codec,
		resolver:         NewIdentityResolver(),
		hasher:           NewBcryptHasher(passwordHashCost()),
		linkPolicy:       PermissiveLinkPolicy,
		logger:           defLogger(),
		activitySink:     noopActivitySink{},
		maxLoginAttempts: MaxLoginAttempts,
		coolDown:         CoolDownPeriod,
		clock:            time.Now,
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// WithPasswordHasher replaces the bcrypt hasher.
func (a *Authenticator) WithPasswordHasher(h PasswordAuthenticator) *Authenticator {
	if h != nil {
		a.hasher = h
	}
	return a
}

// WithLinkPolicy sets the federated link hook, nil restores the default.
func (a *Authenticator) WithLinkPolicy(policy FederatedLinkPolicy) *Authenticator {
	if policy == nil {
		policy = PermissiveLinkPolicy
	}
	a.linkPolicy = policy
	return a
}

// WithLoginThrottle configures attempt limits. max <= 0 disables throttling.
func (a *Authenticator) WithLoginThrottle(max int, coolDown time.Duration) *Authenticator {
	a.maxLoginAttempts = max
	a.coolDown = coolDown
	return a
}

// WithClock overrides time.Now for flows that do not take an explicit time.
func (a *Authenticator) WithClock(clock Clock) *Authenticator {
	if clock != nil {
		a.clock = clock
	}
	return a
}

// Codec returns the token codec used to issue tokens
func (a *Authenticator) Codec() *TokenCodec {
	return a.codec
}

// Hasher returns the password hasher
func (a *Authenticator) Hasher() PasswordAuthenticator {
	return a.hasher
}

// LoginLocal authenticates an email and password.
func (a *Authenticator) LoginLocal(ctx context.Context, email, password string, now time.Time) (*LoginResult, error) {
	email = NormalizeEmail(email)

	principal, err := a.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			a.compareDummy(password)
			a.loginFailed(ctx, now, nil, email, ErrAccountNotFound)
			return nil, ErrAccountNotFound
		}
		a.logger.Error("login lookup failed", "email", email, "error", err)
		return nil, err
	}

	// every rejection pays for one bcrypt comparison
	if principal.IsPending() {
		a.compareDummy(password)
		a.loginFailed(ctx, now, principal, email, ErrAccountLocked)
		return nil, ErrAccountLocked
	}

	if a.isThrottled(principal, now) {
		a.compareDummy(password)
		a.loginFailed(ctx, now, principal, email, ErrTooManyLoginAttempts)
		return nil, ErrTooManyLoginAttempts
	}

	if !principal.HasPassword() {
		a.compareDummy(password)
		a.loginFailed(ctx, now, principal, email, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if err := a.hasher.ComparePasswordAndHash(password, *principal.PasswordHash); err != nil {
		a.trackAttempt(ctx, principal, false, now)
		a.loginFailed(ctx, now, principal, email, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	a.trackAttempt(ctx, principal, true, now)

	result, err := a.IssueFor(principal, now)
	if err != nil {
		a.loginFailed(ctx, now, principal, email, err)
		return nil, err
	}

	recordActivity(ctx, a.activitySink, a.logger, now, ActivityEventLoginSuccess, principal, map[string]any{
		"email":    email,
		"provider": string(ProviderLocal),
	})

	return result, nil
}

// LoginFederated resolves attrs for provider and upserts the principal
// keyed by email. Running it twice with the same input yields the same
// principal.
func (a *Authenticator) LoginFederated(ctx context.Context, provider Provider, attrs map[string]any, now time.Time) (*LoginResult, error) {
	identity, err := a.resolver.Resolve(provider, attrs)
	if err != nil {
		a.socialFailed(ctx, now, nil, provider, err)
		return nil, err
	}

	principal, err := a.upsertFederated(ctx, identity)
	if err != nil {
		a.socialFailed(ctx, now, principal, provider, err)
		return nil, err
	}

	result, err := a.IssueFor(principal, now)
	if err != nil {
		a.socialFailed(ctx, now, principal, provider, err)
		return nil, err
	}

	recordActivity(ctx, a.activitySink, a.logger, now, ActivityEventSocialLogin, principal, map[string]any{
		"email":    identity.Email,
		"provider": string(provider),
	})

	return result, nil
}

func (a *Authenticator) upsertFederated(ctx context.Context, identity FederatedIdentity) (*Principal, error) {
	existing, err := a.directory.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		return a.linkFederated(ctx, existing, identity)
	case !errors.Is(err, ErrPrincipalNotFound):
		return nil, err
	}

	created, err := a.directory.Create(ctx, NewFederatedPrincipal(identity))
	if err == nil {
		a.logger.Info("federated principal created", "email", identity.Email, "provider", string(identity.Provider))
		return created, nil
	}
	if !errors.Is(err, ErrDuplicateEmail) {
		return nil, err
	}

	// lost a concurrent create for the same email
	existing, err = a.directory.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	return a.linkFederated(ctx, existing, identity)
}

func (a *Authenticator) linkFederated(ctx context.Context, existing *Principal, identity FederatedIdentity) (*Principal, error) {
	if existing.IsPending() {
		return existing, ErrAccountLocked
	}

	if err := a.linkPolicy(ctx, existing, identity); err != nil {
		return existing, err
	}

	if existing.Provider == identity.Provider {
		return existing, nil
	}

	existing.Provider = identity.Provider
	saved, err := a.directory.Save(ctx, existing, ColumnProvider)
	if err != nil {
		return existing, err
	}
	return saved, nil
}

// Activate consumes an activation token. The claim is a single conditional
// update so a token can be used at most once.
func (a *Authenticator) Activate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidActivationToken
	}

	principal, err := a.directory.ClaimActivationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) || errors.Is(err, ErrInvalidActivationToken) {
			return nil, ErrInvalidActivationToken
		}
		return nil, err
	}

	recordActivity(ctx, a.activitySink, a.logger, a.clock(), ActivityEventActivated, principal, map[string]any{
		"email": principal.Email,
	})

	return principal, nil
}

// IssueFor signs a token for principal with its primary role. The subject
// is the principal email.
func (a *Authenticator) IssueFor(principal *Principal, now time.Time) (*LoginResult, error) {
	ttl := a.codec.TTL()
	token, err := a.codec.Issue(principal.Email, string(principal.PrimaryRole()), now, ttl)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     token,
		Principal: principal,
		ExpiresAt: now.Truncate(time.Second).Add(time.Duration(ttl) * time.Second),
	}, nil
}

func (a *Authenticator) compareDummy(password string) {
	if d, ok := a.hasher.(dummyComparer); ok {
		d.CompareDummy(password)
	}
}

func (a *Authenticator) isThrottled(p *Principal, now time.Time) bool {
	if a.maxLoginAttempts <= 0 || p.LoginAttemptAt == nil {
		return false
	}
	if p.LoginAttempts < a.maxLoginAttempts {
		return false
	}
	return withinWindow(now, *p.LoginAttemptAt, a.coolDown)
}

func (a *Authenticator) trackAttempt(ctx context.Context, p *Principal, success bool, now time.Time) {
	if err := a.directory.TrackLoginAttempt(ctx, p, success, now); err != nil {
		a.logger.Warn("track login attempt failed", "principal", p.ID.String(), "error", err)
	}
}

func (a *Authenticator) loginFailed(ctx context.Context, now time.Time, p *Principal, email string, err error) {
	a.logger.Debug("login failed", "email", email, "error", err)
	recordActivity(ctx, a.activitySink, a.logger, now, ActivityEventLoginFailure, p, map[string]any{
		"email": email,
		"error": err.Error(),
	})
}

func (a *Authenticator) socialFailed(ctx context.Context, now time.Time, p *Principal, provider Provider, err error) {
	a.logger.Warn("federated login failed", "provider", string(provider), "error", err)
	recordActivity(ctx, a.activitySink, a.logger, now, ActivityEventSocialLoginFailure, p, map[string]any{
		"provider": string(provider),
		"error":    err.Error(),
	})
}
