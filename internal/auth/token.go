package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var segmentEncoding = base64.RawURLEncoding.Strict()

// TokenPayload is the support identity claim carried inside a signed token.
type TokenPayload struct {
	IdentityID string
	Role       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// wirePayload fixes the JSON key order and the millisecond epoch encoding.
type wirePayload struct {
	IdentityID string `json:"supportUserId"`
	Role       string `json:"role"`
	IssuedAt   int64  `json:"issuedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// TokenCodec issues and verifies support tokens of the form
// base64url(payload) "." base64url(HMAC-SHA256(secret, base64url(payload))).
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customizes a TokenCodec.
type TokenOption func(*TokenCodec)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tc *TokenCodec) {
		tc.now = now
	}
}

// NewTokenCodec builds a codec for the given secret.
func NewTokenCodec(secret string, ttl time.Duration, opts ...TokenOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	tc := &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

// TTL returns the lifetime applied by Issue.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Issue builds and encodes a fresh payload for the identity.
func (tc *TokenCodec) Issue(identityID, role string) (string, TokenPayload, error) {
	now := tc.now()
	payload := TokenPayload{
		IdentityID: identityID,
		Role:       role,
		IssuedAt:   time.UnixMilli(now.UnixMilli()),
		ExpiresAt:  time.UnixMilli(now.Add(tc.ttl).UnixMilli()),
	}
	token, err := tc.Encode(payload)
	if err != nil {
		return "", TokenPayload{}, err
	}
	return token, payload, nil
}

// Encode serializes and signs the payload.
func (tc *TokenCodec) Encode(payload TokenPayload) (string, error) {
	if payload.IdentityID == "" {
		return "", fmt.Errorf("%w: identity required", ErrMalformedToken)
	}
	if payload.ExpiresAt.UnixMilli() <= 0 {
		return "", fmt.Errorf("%w: expiry required", ErrMalformedToken)
	}
	raw, err := json.Marshal(wirePayload{
		IdentityID: payload.IdentityID,
		Role:       payload.Role,
		IssuedAt:   payload.IssuedAt.UnixMilli(),
		ExpiresAt:  payload.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}

	body := segmentEncoding.EncodeToString(raw)
	sig, err := jwt.SigningMethodHS256.Sign(body, tc.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return body + "." + segmentEncoding.EncodeToString(sig), nil
}

// Decode verifies the token and returns its payload. The signature is checked
// before the payload is parsed, and expiry last.
func (tc *TokenCodec) Decode(token string) (TokenPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TokenPayload{}, ErrMalformedToken
	}
	body, sigSegment := parts[0], parts[1]

	// The decoder skips CR and LF, which would make the segment malleable.
	if strings.ContainsAny(sigSegment, "\r\n") {
		return TokenPayload{}, ErrInvalidSignature
	}
	sig, err := segmentEncoding.DecodeString(sigSegment)
	if err != nil {
		return TokenPayload{}, ErrInvalidSignature
	}
	// hmac.Equal inside Verify keeps the comparison constant time.
	if err := jwt.SigningMethodHS256.Verify(body, sig, tc.secret); err != nil {
		return TokenPayload{}, ErrInvalidSignature
	}

	raw, err := segmentEncoding.DecodeString(body)
	if err != nil {
		return TokenPayload{}, ErrMalformedToken
	}
	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return TokenPayload{}, ErrMalformedToken
	}
	if wire.IdentityID == "" {
		return TokenPayload{}, ErrMalformedToken
	}
	// A missing expiry decodes as zero, which lies in the past.
	if wire.ExpiresAt <= 0 {
		return TokenPayload{}, ErrExpired
	}

	payload := TokenPayload{
		IdentityID: wire.IdentityID,
		Role:       wire.Role,
		IssuedAt:   time.UnixMilli(wire.IssuedAt),
		ExpiresAt:  time.UnixMilli(wire.ExpiresAt),
	}
	if !tc.now().Before(payload.ExpiresAt) {
		return TokenPayload{}, ErrExpired
	}
	return payload, nil
}
