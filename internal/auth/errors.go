package auth

import "errors"

// Sentinel errors returned by the token manager. Callers should use
// errors.Is for comparison.
var (
	// ErrTokenExpired is returned when a JWT has expired.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or verified.
	ErrTokenInvalid = errors.New("auth: token invalid")

	// ErrTokenRevoked is returned when a token's jti is in the revocation set.
	ErrTokenRevoked = errors.New("auth: token revoked")
)
