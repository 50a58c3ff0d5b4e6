// Package session holds server-side login records, partitioned by identity domain.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/portal-auth/internal/domain"
)

const idBytes = 32

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidDomain   = errors.New("invalid session domain")
)

// Store is a domain-partitioned session repository. Every lookup names its
// domain explicitly; an id created in one domain is never visible from the other.
type Store interface {
	Create(ctx context.Context, d domain.Domain, identityID, role, organizationID string) (domain.Session, error)
	Find(ctx context.Context, d domain.Domain, id string) (domain.Session, error)
	Destroy(ctx context.Context, d domain.Domain, id string) error
	SweepExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

// Option customizes a store.
type Option func(*options)

type options struct {
	idleTimeout time.Duration
	now         func() time.Time
}

// WithIdleTimeout makes sessions untouched for longer than d unresolvable.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) idle(s domain.Session, now time.Time) bool {
	return o.idleTimeout > 0 && now.Sub(s.LastSeenAt) > o.idleTimeout
}

// NewID returns a high-entropy opaque session identifier.
func NewID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func newRecord(d domain.Domain, identityID, role, organizationID string, now time.Time) (domain.Session, error) {
	if !d.Valid() {
		return domain.Session{}, ErrInvalidDomain
	}
	if identityID == "" {
		return domain.Session{}, errors.New("identity id is required")
	}
	id, err := NewID()
	if err != nil {
		return domain.Session{}, err
	}
	now = now.UTC()
	return domain.Session{
		ID:             id,
		IdentityID:     identityID,
		Role:           role,
		Domain:         d,
		OrganizationID: organizationID,
		CreatedAt:      now,
		LastSeenAt:     now,
	}, nil
}
