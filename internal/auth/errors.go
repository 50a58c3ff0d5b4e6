package auth

import "errors"

// Authentication failures. Callers outside this package see all of them as 401.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrWrongDomain      = errors.New("identity not permitted for this path")
)
