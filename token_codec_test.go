package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-shop-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sup3r-s3cret"

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCodec(t *testing.T, secret string) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(secret)
	require.NoError(t, err)
	return codec
}

func derivedKey(secret string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(secret)))
}

func TestNewTokenCodec_RejectsEmptySecret(t *testing.T) {
	codec, err := auth.NewTokenCodec("")
	require.Error(t, err)
	assert.Nil(t, codec)
}

func TestNewTokenCodec_TTL(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultTokenTTL, codec.TTL())

	codec, err = auth.NewTokenCodec(testSecret, 900)
	require.NoError(t, err)
	assert.Equal(t, 900, codec.TTL())
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := newCodec(t, testSecret)

	token, err := codec.Issue("42", "ADMIN", t0, 3600)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := codec.Verify(token, t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject())
	assert.Equal(t, "ADMIN", claims.Role)
	assert.True(t, t0.Equal(claims.IssuedAt()))
	assert.True(t, t0.Add(time.Hour).Equal(claims.Expires()))

	role, ok := claims.UserRole()
	assert.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)
}

func TestTokenCodec_ConcreteScenario(t *testing.T) {
	codec := newCodec(t, testSecret)

	token, err := codec.Issue("42", "USER", t0, 3600)
	require.NoError(t, err)

	claims, err := codec.Verify(token, t0.Add(1800*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject())
	assert.Equal(t, "USER", claims.Role)

	_, err = codec.Verify(token, t0.Add(3601*time.Second))
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	codec := newCodec(t, testSecret)
	token, err := codec.Issue("7", "USER", t0, 60)
	require.NoError(t, err)

	_, err = codec.Verify(token, t0.Add(59*time.Second))
	assert.NoError(t, err)

	_, err = codec.Verify(token, t0.Add(60*time.Second))
	assert.ErrorIs(t, err, auth.ErrTokenExpired, "now == exp is expired")
}

func TestTokenCodec_Deterministic(t *testing.T) {
	codec := newCodec(t, testSecret)

	a, err := codec.Issue("42", "USER", t0, 3600)
	require.NoError(t, err)
	b, err := codec.Issue("42", "USER", t0, 3600)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := newCodec(t, testSecret)
	c, err := other.Issue("42", "USER", t0, 3600)
	require.NoError(t, err)
	assert.Equal(t, a, c, "codecs with the same secret agree")
}

func TestTokenCodec_KeyIsolation(t *testing.T) {
	k1 := newCodec(t, testSecret)
	k2 := newCodec(t, testSecret+"-other")

	token, err := k1.Issue("42", "USER", t0, 3600)
	require.NoError(t, err)

	_, err = k2.Verify(token, t0)
	assert.ErrorIs(t, err, auth.ErrTokenInvalidSignature)
}

func TestTokenCodec_SignatureCheckedBeforeExpiry(t *testing.T) {
	k1 := newCodec(t, testSecret)
	k2 := newCodec(t, "another")

	token, err := k1.Issue("42", "USER", t0, 60)
	require.NoError(t, err)

	_, err = k2.Verify(token, t0.Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrTokenInvalidSignature)
}

func TestTokenCodec_TamperedPayload(t *testing.T) {
	codec := newCodec(t, testSecret)

	user, err := codec.Issue("42", "USER", t0, 3600)
	require.NoError(t, err)
	admin, err := codec.Issue("42", "ADMIN", t0, 3600)
	require.NoError(t, err)

	u := strings.Split(user, ".")
	a := strings.Split(admin, ".")
	forged := strings.Join([]string{u[0], a[1], u[2]}, ".")

	_, err = codec.Verify(forged, t0)
	assert.ErrorIs(t, err, auth.ErrTokenInvalidSignature)
}

func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec := newCodec(t, testSecret)
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			IssuedAt:  jwt.NewNumericDate(t0),
			ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
		},
		Role: "ADMIN",
	}

	t.Run("HS512 with the same key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(derivedKey(testSecret))
		require.NoError(t, err)

		_, err = codec.Verify(token, t0)
		assert.ErrorIs(t, err, auth.ErrTokenInvalidSignature)
	})

	t.Run("none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Verify(token, t0)
		assert.ErrorIs(t, err, auth.ErrTokenInvalidSignature)
	})
}

func TestTokenCodec_MissingClaimsAreMalformed(t *testing.T) {
	codec := newCodec(t, testSecret)
	key := derivedKey(testSecret)

	tests := []struct {
		name   string
		claims jwt.Claims
	}{
		{
			name: "no role",
			claims: &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "42",
				IssuedAt:  jwt.NewNumericDate(t0),
				ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
			}},
		},
		{
			name: "no subject",
			claims: &auth.Claims{Role: "USER", RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(t0),
				ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
			}},
		},
		{
			name: "no exp",
			claims: &auth.Claims{Role: "USER", RegisteredClaims: jwt.RegisteredClaims{
				Subject:  "42",
				IssuedAt: jwt.NewNumericDate(t0),
			}},
		},
		{
			name: "no iat",
			claims: &auth.Claims{Role: "USER", RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
			}},
		},
		{
			name:   "exp of the wrong type",
			claims: jwt.MapClaims{"sub": "42", "role": "USER", "iat": t0.Unix(), "exp": "tomorrow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString(key)
			require.NoError(t, err)

			_, err = codec.Verify(token, t0)
			assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		})
	}
}

func TestTokenCodec_MalformedInput(t *testing.T) {
	codec := newCodec(t, testSecret)

	inputs := []string{
		"",
		"abc",
		"a.b",
		"a.b.c",
		"!!!.###.$$$",
		"eyJhbGciOiJIUzI1NiJ9.bm90IGpzb24.c2ln",
		strings.Repeat(".", 10),
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			claims, err := codec.Verify(in, t0)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, auth.ErrTokenMalformed, "input %q", in)
		})
	}
}

func TestTokenCodec_IssueRejectsBadInput(t *testing.T) {
	codec := newCodec(t, testSecret)

	_, err := codec.Issue("", "USER", t0, 60)
	assert.Error(t, err)

	_, err = codec.Issue("42", "", t0, 60)
	assert.Error(t, err)

	_, err = codec.Issue("42", "USER", t0, 0)
	assert.Error(t, err)
}

func TestIsTokenError(t *testing.T) {
	assert.True(t, auth.IsTokenError(auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenError(auth.ErrTokenMalformed))
	assert.True(t, auth.IsTokenError(auth.ErrTokenInvalidSignature))
	assert.False(t, auth.IsTokenError(auth.ErrForbidden))
	assert.False(t, auth.IsTokenError(nil))
}
