package auth

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/session"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

const identityKey = "auth_identity"

// Decision outcomes reported to the recorder.
const (
	OutcomePublic          = "public"
	OutcomeAllowed         = "allowed"
	OutcomeDenied          = "denied"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeError           = "error"
)

// DecisionRecorder receives one call per authorization decision.
type DecisionRecorder interface {
	RecordAuthDecision(outcome, domain string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthDecision(string, string) {}

// AuthMiddleware attaches a verified identity to each request or rejects it.
// Each domain is resolved on its own; a request is allowed only when a domain
// permitted for the path resolves, and only that domain's identity is attached.
type AuthMiddleware struct {
	cookies               *CookieAdapter
	sessions              session.Store
	policy                *PolicyMatrix
	logger                *zap.Logger
	recorder              DecisionRecorder
	requireSupportSession bool
}

// MiddlewareOption customizes the middleware.
type MiddlewareOption func(*AuthMiddleware)

// WithDecisionRecorder reports decisions, typically to metrics.
func WithDecisionRecorder(r DecisionRecorder) MiddlewareOption {
	return func(m *AuthMiddleware) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithSupportSessionRequired also demands a live support session matching the token.
func WithSupportSessionRequired(required bool) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.requireSupportSession = required
	}
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(cookies *CookieAdapter, sessions session.Store, policy *PolicyMatrix, logger *zap.Logger, opts ...MiddlewareOption) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AuthMiddleware{
		cookies:  cookies,
		sessions: sessions,
		policy:   policy,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle enforces the policy matrix for every request.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	access := m.policy.Resolve(c.Path())
	if access.Public {
		m.recorder.RecordAuthDecision(OutcomePublic, "none")
		return c.Next()
	}

	for _, d := range access.Allowed.Members() {
		identity, ok, err := m.resolve(c, d)
		if err != nil {
			m.recorder.RecordAuthDecision(OutcomeError, d.String())
			m.logger.Error("identity resolution failed",
				zap.String("domain", d.String()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return apperrors.NewInternalError(err)
		}
		if ok {
			m.recorder.RecordAuthDecision(OutcomeAllowed, d.String())
			c.Locals(identityKey, identity)
			return c.Next()
		}
	}

	// No allowed domain resolved. The others only choose between 401 and 403,
	// and their backend errors never fail the request.
	present := make([]string, 0, 1)
	for _, d := range domain.Domains() {
		if access.Allowed.Has(d) {
			continue
		}
		_, ok, err := m.resolve(c, d)
		if err != nil {
			m.logger.Warn("identity resolution failed outside allowed domains",
				zap.String("domain", d.String()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			present = append(present, d.String())
		}
	}

	if len(present) > 0 {
		m.recorder.RecordAuthDecision(OutcomeDenied, present[0])
		m.logger.Info("request denied for domain",
			zap.String("path", c.Path()),
			zap.Strings("resolved", present),
			zap.String("allowed", access.Allowed.String()),
			zap.Error(ErrWrongDomain),
		)
		return apperrors.NewForbidden("access denied")
	}

	m.recorder.RecordAuthDecision(OutcomeUnauthenticated, "none")
	return apperrors.NewUnauthorized("authentication required")
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx, d domain.Domain) (domain.RequestIdentity, bool, error) {
	switch d {
	case domain.DomainSupport:
		return m.resolveSupport(c)
	case domain.DomainCustomer:
		return m.resolveCustomer(c)
	}
	return domain.RequestIdentity{}, false, fmt.Errorf("unhandled domain %s", d)
}

func (m *AuthMiddleware) resolveSupport(c *fiber.Ctx) (domain.RequestIdentity, bool, error) {
	payload, ok := m.cookies.ReadSupportIdentity(c)
	if !ok {
		return domain.RequestIdentity{}, false, nil
	}
	identity := domain.RequestIdentity{
		Domain:     domain.DomainSupport,
		IdentityID: payload.IdentityID,
		Role:       payload.Role,
	}
	if !m.requireSupportSession {
		return identity, true, nil
	}

	sid, ok := m.cookies.ReadSupportSession(c)
	if !ok {
		m.logger.Debug("support token without session cookie", zap.String("path", c.Path()))
		return domain.RequestIdentity{}, false, nil
	}
	rec, err := m.lookup(c, domain.DomainSupport, sid)
	if err != nil || rec == nil {
		return domain.RequestIdentity{}, false, err
	}
	if rec.IdentityID != payload.IdentityID {
		m.logger.Debug("support session does not match token", zap.String("path", c.Path()))
		return domain.RequestIdentity{}, false, nil
	}
	identity.SessionID = rec.ID
	return identity, true, nil
}

func (m *AuthMiddleware) resolveCustomer(c *fiber.Ctx) (domain.RequestIdentity, bool, error) {
	sid, ok := m.cookies.ReadCustomerSession(c)
	if !ok {
		return domain.RequestIdentity{}, false, nil
	}
	rec, err := m.lookup(c, domain.DomainCustomer, sid)
	if err != nil || rec == nil {
		return domain.RequestIdentity{}, false, err
	}
	return domain.RequestIdentity{
		Domain:         domain.DomainCustomer,
		IdentityID:     rec.IdentityID,
		Role:           rec.Role,
		OrganizationID: rec.OrganizationID,
		SessionID:      rec.ID,
	}, true, nil
}

// lookup returns nil without error when the session does not resolve.
func (m *AuthMiddleware) lookup(c *fiber.Ctx, d domain.Domain, sid string) (*domain.Session, error) {
	rec, err := m.sessions.Find(c.UserContext(), d, sid)
	if errors.Is(err, session.ErrSessionNotFound) {
		m.logger.Debug("session rejected",
			zap.String("domain", d.String()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IdentityFromContext retrieves the identity attached by the middleware.
func IdentityFromContext(c *fiber.Ctx) (domain.RequestIdentity, bool) {
	identity, ok := c.Locals(identityKey).(domain.RequestIdentity)
	return identity, ok
}
