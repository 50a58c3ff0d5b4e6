package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/repository"
	"github.com/spec-kit/portal-auth/internal/session"
)

var (
	// ErrInvalidCredentials covers unknown accounts, wrong passwords and
	// inactive accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// CustomerLogin is the result of a successful customer login.
type CustomerLogin struct {
	Customer *domain.Customer
	Session  domain.Session
}

// SupportLogin is the result of a successful support login.
type SupportLogin struct {
	User           *domain.SupportUser
	Session        domain.Session
	Token          string
	TokenExpiresAt time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Customers    repository.CustomerRepository
	SupportUsers repository.SupportUserRepository
	Sessions     session.Store
	Tokens       *auth.TokenCodec
	Events       events.Dispatcher
	Logger       *zap.Logger
	BcryptCost   int
	Now          func() time.Time
}

// AuthService coordinates login and logout for both domains. Each login
// consults only its own domain's credential table and session partition.
type AuthService struct {
	customers  repository.CustomerRepository
	support    repository.SupportUserRepository
	sessions   session.Store
	tokens     *auth.TokenCodec
	events     events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		customers:  deps.Customers,
		support:    deps.SupportUsers,
		sessions:   deps.Sessions,
		tokens:     deps.Tokens,
		events:     deps.Events,
		logger:     deps.Logger,
		bcryptCost: deps.BcryptCost,
		now:        deps.Now,
	}
	if s.events == nil {
		s.events = events.NewInMemoryDispatcher(nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = 12
	}
	return s
}

// LoginCustomer authenticates an organization member and opens a customer session.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*CustomerLogin, error) {
	email = normalizeEmail(email)
	customer, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.BurnCompare(password)
			return nil, s.loginFailed(ctx, domain.DomainCustomer, email, "unknown_account")
		}
		return nil, err
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, s.loginFailed(ctx, domain.DomainCustomer, email, "bad_password")
	}
	if customer.Status != domain.CustomerStatusActive {
		return nil, s.loginFailed(ctx, domain.DomainCustomer, email, "inactive")
	}

	sess, err := s.sessions.Create(ctx, domain.DomainCustomer, customer.ID, string(customer.Role), customer.OrganizationID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventLoginSucceeded, domain.DomainCustomer, customer.ID, nil)
	return &CustomerLogin{Customer: customer, Session: sess}, nil
}

// LoginSupport authenticates an internal operator, opens a support session
// and issues a signed support token.
func (s *AuthService) LoginSupport(ctx context.Context, email, password string) (*SupportLogin, error) {
	email = normalizeEmail(email)
	user, err := s.support.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.BurnCompare(password)
			return nil, s.loginFailed(ctx, domain.DomainSupport, email, "unknown_account")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.loginFailed(ctx, domain.DomainSupport, email, "bad_password")
	}
	if !user.Active {
		return nil, s.loginFailed(ctx, domain.DomainSupport, email, "inactive")
	}

	sess, err := s.sessions.Create(ctx, domain.DomainSupport, user.ID, string(user.Role), "")
	if err != nil {
		return nil, err
	}
	token, payload, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		_ = s.sessions.Destroy(ctx, domain.DomainSupport, sess.ID)
		return nil, err
	}
	s.publish(ctx, events.EventLoginSucceeded, domain.DomainSupport, user.ID, nil)
	return &SupportLogin{User: user, Session: sess, Token: token, TokenExpiresAt: payload.ExpiresAt}, nil
}

// Logout destroys the session in the given domain. Unknown ids are ignored.
func (s *AuthService) Logout(ctx context.Context, d domain.Domain, sessionID string) error {
	var identityID string
	if sessionID != "" {
		if sess, err := s.sessions.Find(ctx, d, sessionID); err == nil {
			identityID = sess.IdentityID
		} else if !errors.Is(err, session.ErrSessionNotFound) {
			return err
		}
		if err := s.sessions.Destroy(ctx, d, sessionID); err != nil {
			return err
		}
	}
	s.publish(ctx, events.EventLogout, d, identityID, nil)
	return nil
}

// CurrentCustomer loads the member behind a customer identity.
func (s *AuthService) CurrentCustomer(ctx context.Context, identity domain.RequestIdentity) (*domain.Customer, error) {
	if identity.Domain != domain.DomainCustomer {
		return nil, auth.ErrWrongDomain
	}
	return s.customers.GetByID(ctx, identity.IdentityID)
}

// CurrentSupportUser loads the operator behind a support identity.
func (s *AuthService) CurrentSupportUser(ctx context.Context, identity domain.RequestIdentity) (*domain.SupportUser, error) {
	if identity.Domain != domain.DomainSupport {
		return nil, auth.ErrWrongDomain
	}
	return s.support.GetByID(ctx, identity.IdentityID)
}

// CreateSupportUser registers a new operator.
func (s *AuthService) CreateSupportUser(ctx context.Context, name, email, password string, role domain.SupportRole) (*domain.SupportUser, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(name) == "" || email == "" || len(password) < 8 || !role.Valid() {
		return nil, ErrInvalidInput
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.SupportUser{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.support.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListSupportUsers lists operators.
func (s *AuthService) ListSupportUsers(ctx context.Context, filter repository.SupportUserFilter) ([]domain.SupportUser, error) {
	return s.support.List(ctx, filter)
}

func (s *AuthService) loginFailed(ctx context.Context, d domain.Domain, email, reason string) error {
	s.logger.Info("login failed",
		zap.String("domain", d.String()),
		zap.String("reason", reason),
	)
	s.publish(ctx, events.EventLoginFailed, d, "", events.LoginFailedPayload{Email: email, Reason: reason})
	return ErrInvalidCredentials
}

func (s *AuthService) publish(ctx context.Context, t events.EventType, d domain.Domain, identityID string, payload any) {
	_ = s.events.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       t,
		Domain:     d,
		IdentityID: identityID,
		Timestamp:  s.now().UTC(),
		Payload:    payload,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
