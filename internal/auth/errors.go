package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptyToken is returned when no token was supplied.
	ErrEmptyToken = errors.New("token is empty")
	// ErrAuthenticationFailed is the single login failure, whatever the cause.
	ErrAuthenticationFailed = errors.New("invalid username or password")
	// ErrInvalidRefreshToken wraps any refresh token verification failure.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrUnsupportedAlgorithm is returned for non-HMAC signing algorithms.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	// ErrUnauthorized represents missing or invalid authentication.
	ErrUnauthorized = errors.New("unauthorized")
)

// TokenVerificationError covers every decode failure: malformed input, bad
// signature, unexpected algorithm and expiry.
type TokenVerificationError struct {
	Err error
}

func (e *TokenVerificationError) Error() string {
	return fmt.Sprintf("token verification failed: %v", e.Err)
}

func (e *TokenVerificationError) Unwrap() error {
	return e.Err
}

// Expired reports whether verification failed because the token expired.
func (e *TokenVerificationError) Expired() bool {
	return errors.Is(e.Err, jwt.ErrTokenExpired)
}

// TokenTypeMismatchError reports a valid token of the wrong role.
type TokenTypeMismatchError struct {
	Expected TokenType
	Actual   TokenType
}

func (e *TokenTypeMismatchError) Error() string {
	return fmt.Sprintf("invalid token type: expected %s, got %s", e.Expected, e.Actual)
}
