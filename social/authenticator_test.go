package social

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	auth "github.com/goliatone/go-shop-auth"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// stubLogin records the attributes it receives.
type stubLogin struct {
	provider auth.Provider
	attrs    map[string]any
	at       time.Time
	err      error
}

func (s *stubLogin) LoginFederated(_ context.Context, provider auth.Provider, attrs map[string]any, now time.Time) (*auth.LoginResult, error) {
	s.provider, s.attrs, s.at = provider, attrs, now
	if s.err != nil {
		return nil, s.err
	}
	identity, err := auth.NewIdentityResolver().Resolve(provider, attrs)
	if err != nil {
		return nil, err
	}
	return &auth.LoginResult{
		Token:     "session-token",
		Principal: &auth.Principal{ID: uuid.New(), Email: identity.Email, Provider: provider},
		ExpiresAt: now.Add(time.Hour),
	}, nil
}

func newTestSocial(t *testing.T, gh *fakeGitHub, login FederatedLogin) *SocialAuthenticator {
	t.Helper()
	return NewSocialAuthenticator(login, SocialAuthConfig{
		DefaultRedirectURL: "http://localhost:3000/oauth2/redirect",
		StateSecret:        "state-secret",
		StateTTL:           5 * time.Minute,
	},
		WithProvider(gh.provider()),
		WithClock(func() time.Time { return testNow }),
	)
}

func stateFrom(t *testing.T, redirect *AuthRedirect) url.Values {
	t.Helper()
	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	return u.Query()
}

func TestSocialAuthenticator_FullFlow(t *testing.T) {
	gh := newFakeGitHub(t)
	login := &stubLogin{}
	sa := newTestSocial(t, gh, login)
	ctx := t.Context()

	redirect, err := sa.BeginAuth(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, auth.ProviderGitHub, redirect.Provider)

	q := stateFrom(t, redirect)
	assert.Equal(t, redirect.State, q.Get("state"))
	challenge := q.Get("code_challenge")
	require.NotEmpty(t, challenge)

	result, err := sa.CompleteAuth(ctx, "github", "good-code", redirect.State)
	require.NoError(t, err)

	// the verifier sent at exchange matches the challenge sent at consent
	assert.Equal(t, challenge, oauth2.S256ChallengeFromVerifier(gh.lastVerifier()))

	assert.Equal(t, "session-token", result.Login.Token)
	assert.Equal(t, "octo@example.com", result.Login.Principal.Email)
	assert.Equal(t, "http://localhost:3000/oauth2/redirect", result.RedirectURL)
	assert.Equal(t, auth.ProviderGitHub, login.provider)
	assert.Equal(t, testNow, login.at)
}

func TestSocialAuthenticator_UnknownProvider(t *testing.T) {
	gh := newFakeGitHub(t)
	sa := newTestSocial(t, gh, &stubLogin{})

	for _, name := range []string{"twitter", "local", "google", ""} {
		_, err := sa.BeginAuth(t.Context(), name)
		assert.ErrorIs(t, err, ErrProviderNotFound, name)
	}
}

func TestSocialAuthenticator_StateChecks(t *testing.T) {
	gh := newFakeGitHub(t)
	sa := newTestSocial(t, gh, &stubLogin{})
	ctx := t.Context()

	_, err := sa.CompleteAuth(ctx, "github", "", "state")
	assert.ErrorIs(t, err, ErrMissingParams)

	_, err = sa.CompleteAuth(ctx, "github", "good-code", "forged")
	assert.ErrorIs(t, err, ErrInvalidState)

	sm, err := NewStateManagerFromSecret("state-secret", time.Minute)
	require.NoError(t, err)
	sm.WithClock(func() time.Time { return testNow })
	googleState, err := sm.Encode(&OAuthState{Provider: "google", CodeVerifier: "v"})
	require.NoError(t, err)

	_, err = sa.CompleteAuth(ctx, "github", "good-code", googleState)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSocialAuthenticator_ExpiredState(t *testing.T) {
	gh := newFakeGitHub(t)
	now := testNow
	sa := NewSocialAuthenticator(&stubLogin{}, SocialAuthConfig{StateSecret: "state-secret", StateTTL: time.Minute},
		WithProvider(gh.provider()),
		WithClock(func() time.Time { return now }),
	)

	redirect, err := sa.BeginAuth(t.Context(), "github")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = sa.CompleteAuth(t.Context(), "github", "good-code", redirect.State)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestSocialAuthenticator_ProviderFailures(t *testing.T) {
	gh := newFakeGitHub(t)
	sa := newTestSocial(t, gh, &stubLogin{})

	redirect, err := sa.BeginAuth(t.Context(), "github")
	require.NoError(t, err)
	_, err = sa.CompleteAuth(t.Context(), "github", "bad-code", redirect.State)
	assert.ErrorIs(t, err, ErrTokenExchangeFailed)

	gh.set(func(f *fakeGitHub) { f.userStatus = 500 })
	redirect, err = sa.BeginAuth(t.Context(), "github")
	require.NoError(t, err)
	_, err = sa.CompleteAuth(t.Context(), "github", "good-code", redirect.State)
	assert.ErrorIs(t, err, ErrUserInfoFailed)
}

func TestSocialAuthenticator_LoginErrorsPassThrough(t *testing.T) {
	gh := newFakeGitHub(t)
	sa := newTestSocial(t, gh, &stubLogin{err: auth.ErrAccountLocked})

	redirect, err := sa.BeginAuth(t.Context(), "github")
	require.NoError(t, err)
	_, err = sa.CompleteAuth(t.Context(), "github", "good-code", redirect.State)
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
}

func TestSocialAuthenticator_NoStateSecret(t *testing.T) {
	gh := newFakeGitHub(t)
	sa := NewSocialAuthenticator(&stubLogin{}, SocialAuthConfig{}, WithProvider(gh.provider()))

	_, err := sa.BeginAuth(t.Context(), "github")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, []string{"github"}, sa.ListProviders())
}
