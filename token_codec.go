package auth

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenTTL is used when the codec is built without an explicit TTL.
const DefaultTokenTTL = 3600

// TokenCodec issues and verifies HS256 session tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type TokenCodec struct {
	key []byte
	ttl int
}

// NewTokenCodec derives the signing key from secret. The key is the standard
// base64 encoding of the secret bytes.
func NewTokenCodec(secret string, ttlSeconds ...int) (*TokenCodec, error) {
	if secret == "" {
		return nil, goerrors.New("token signing secret is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	ttl := DefaultTokenTTL
	if len(ttlSeconds) > 0 && ttlSeconds[0] > 0 {
		ttl = ttlSeconds[0]
	}

	return &TokenCodec{
		key: []byte(base64.StdEncoding.EncodeToString([]byte(secret))),
		ttl: ttl,
	}, nil
}

// NewTokenCodecFromConfig builds a codec from a Config.
func NewTokenCodecFromConfig(cfg Config) (*TokenCodec, error) {
	return NewTokenCodec(cfg.GetSigningKey(), cfg.GetTokenExpiration())
}

// TTL is the default token lifetime in seconds.
func (c *TokenCodec) TTL() int {
	return c.ttl
}

// Issue signs {sub, role, iat=now, exp=now+ttl}. The output depends only on
// the inputs and the key.
func (c *TokenCodec) Issue(subject, role string, now time.Time, ttlSeconds int) (string, error) {
	if subject == "" || role == "" {
		return "", goerrors.New("token subject and role are required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if ttlSeconds <= 0 {
		return "", goerrors.New("token TTL must be positive", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"ttl": ttlSeconds})
	}

	issuedAt := now.Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Duration(ttlSeconds) * time.Second)),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify checks the signature first, then expiry (expired iff now >= exp).
// On failure the error is exactly one of ErrTokenMalformed,
// ErrTokenInvalidSignature or ErrTokenExpired.
func (c *TokenCodec) Verify(token string, now time.Time) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, ErrTokenMalformed
		}
	}()

	if token == "" {
		return nil, ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)

	out := &Claims{}
	_, err = parser.ParseWithClaims(token, out, c.keyFunc)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	return out, nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return c.key, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature
	case errors.Is(err, errClaimMissing),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
