package auth

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeTokenInvalidSignature = "TOKEN_INVALID_SIGNATURE"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeBadCredentials        = "BAD_CREDENTIALS"
	TextCodeAccountLocked         = "ACCOUNT_LOCKED"
	TextCodeTooManyAttempts       = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeUnsupportedProvider   = "UNSUPPORTED_PROVIDER"
	TextCodeIncompleteIdentity    = "INCOMPLETE_IDENTITY"
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeDirectoryUnavailable  = "DIRECTORY_UNAVAILABLE"
	TextCodePrincipalNotFound     = "PRINCIPAL_NOT_FOUND"
	TextCodeInvalidActivation     = "INVALID_ACTIVATION_TOKEN"
	TextCodeInvalidPasswordReset  = "INVALID_PASSWORD_RESET_TOKEN"
	TextCodeUnauthorized          = "UNAUTHORIZED"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeUnknownSubject        = "UNKNOWN_SUBJECT"
	TextCodeLinkRejected          = "FEDERATED_LINK_REJECTED"
	TextCodeCaptchaFailed         = "CAPTCHA_FAILED"
	TextCodePasswordMismatch      = "PASSWORD_MISMATCH"
)

// badCredentialsMessage is shared by unknown accounts and wrong passwords so
// callers cannot tell which emails are registered.
const badCredentialsMessage = "incorrect email or password"

// Token errors. Verify returns exactly one of these on failure.
var (
	ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithCode(goerrors.CodeUnauthorized)

	ErrTokenInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
					WithTextCode(TextCodeTokenInvalidSignature).
					WithCode(goerrors.CodeUnauthorized)

	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeUnauthorized)
)

// Login errors
var (
	ErrAccountNotFound = goerrors.New(badCredentialsMessage, goerrors.CategoryAuth).
				WithTextCode(TextCodeBadCredentials).
				WithCode(goerrors.CodeUnauthorized)

	ErrInvalidCredentials = goerrors.New(badCredentialsMessage, goerrors.CategoryAuth).
				WithTextCode(TextCodeBadCredentials).
				WithCode(goerrors.CodeUnauthorized)

	ErrAccountLocked = goerrors.New("account is pending activation", goerrors.CategoryAuth).
				WithTextCode(TextCodeAccountLocked).
				WithCode(goerrors.CodeUnauthorized)

	ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
				WithTextCode(TextCodeTooManyAttempts).
				WithCode(goerrors.CodeTooManyRequests)

	ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
					WithTextCode(TextCodeBadCredentials).
					WithCode(goerrors.CodeUnauthorized)

	ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest)
)

// Identity errors
var (
	ErrUnsupportedProvider = goerrors.New("unsupported identity provider", goerrors.CategoryBadInput).
				WithTextCode(TextCodeUnsupportedProvider).
				WithCode(goerrors.CodeBadRequest)

	ErrIncompleteIdentity = goerrors.New("identity provider did not supply an email", goerrors.CategoryAuth).
				WithTextCode(TextCodeIncompleteIdentity).
				WithCode(goerrors.CodeUnauthorized)

	ErrFederatedLinkRejected = goerrors.New("linking this identity is not allowed", goerrors.CategoryAuthz).
					WithTextCode(TextCodeLinkRejected).
					WithCode(goerrors.CodeForbidden)
)

// Directory errors
var (
	ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
				WithTextCode(TextCodeDuplicateEmail).
				WithCode(goerrors.CodeConflict)

	ErrDirectoryUnavailable = goerrors.New("account directory unavailable", goerrors.CategoryExternal).
				WithTextCode(TextCodeDirectoryUnavailable).
				WithCode(http.StatusServiceUnavailable)

	ErrPrincipalNotFound = goerrors.New("principal not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodePrincipalNotFound).
				WithCode(goerrors.CodeNotFound)
)

// One time token errors
var (
	ErrInvalidActivationToken = goerrors.New("activation code not found", goerrors.CategoryNotFound).
					WithTextCode(TextCodeInvalidActivation).
					WithCode(goerrors.CodeNotFound)

	ErrInvalidPasswordResetToken = goerrors.New("invalid or expired password reset code", goerrors.CategoryNotFound).
					WithTextCode(TextCodeInvalidPasswordReset).
					WithCode(goerrors.CodeNotFound)
)

// Access errors
var (
	ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
			WithTextCode(TextCodeUnauthorized).
			WithCode(goerrors.CodeUnauthorized)

	ErrForbidden = goerrors.New("access denied", goerrors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(goerrors.CodeForbidden)

	ErrUnknownSubject = goerrors.New("token subject is not a known principal", goerrors.CategoryAuth).
				WithTextCode(TextCodeUnknownSubject).
				WithCode(goerrors.CodeUnauthorized)
)

// Input errors
var (
	ErrCaptchaFailed = goerrors.New("captcha verification failed", goerrors.CategoryValidation).
				WithTextCode(TextCodeCaptchaFailed).
				WithCode(goerrors.CodeBadRequest)

	ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
				WithTextCode(TextCodePasswordMismatch).
				WithCode(goerrors.CodeBadRequest)
)

// IsTokenError reports whether err is one of the token verification errors.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenInvalidSignature) ||
		errors.Is(err, ErrTokenExpired)
}

// IsRetryable reports whether a caller may retry the failed operation.
// Only directory outages qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDirectoryUnavailable)
}

// Unavailable wraps a store failure so that errors.Is(err,
// ErrDirectoryUnavailable) holds and the cause stays reachable.
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDirectoryUnavailable, cause)
}
