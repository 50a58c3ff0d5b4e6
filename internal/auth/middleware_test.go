package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/session"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordAuthDecision(outcome, d string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[outcome+"/"+d]++
}

type middlewareFixture struct {
	app      *fiber.App
	codec    *TokenCodec
	store    *session.MemoryStore
	recorder *countingRecorder
	logs     *observer.ObservedLogs
	now      time.Time
}

func newMiddlewareFixture(t *testing.T, opts ...MiddlewareOption) *middlewareFixture {
	t.Helper()
	now := time.Now()
	codec := newTestCodec(t, now)
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store := session.NewMemoryStore()
	recorder := &countingRecorder{}
	cookies := NewCookieAdapter(codec, CookieSettings{Secure: true}, logger)
	mw := NewAuthMiddleware(cookies, store, MustPolicyMatrix(DefaultRules()...), logger,
		append([]MiddlewareOption{WithDecisionRecorder(recorder)}, opts...)...)

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code, "message": de.Message}})
		},
	})
	app.Use(mw.Handle)

	echo := func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return c.JSON(fiber.Map{"identity": nil})
		}
		return c.JSON(fiber.Map{"identity": fiber.Map{
			"domain":          identity.Domain.String(),
			"identity_id":     identity.IdentityID,
			"role":            identity.Role,
			"organization_id": identity.OrganizationID,
		}})
	}
	for _, p := range []string{
		"/support/api/admin/users", "/support/api/me",
		"/api/customers", "/api/jobs", "/api/quotes", "/api/invoices", "/api/members", "/api/equipment",
		"/internal/debug",
	} {
		app.Get(p, echo)
	}
	app.Post("/support/api/auth/login", echo)
	app.Post("/api/auth/login", echo)

	return &middlewareFixture{app: app, codec: codec, store: store, recorder: recorder, logs: logs, now: now}
}

func (f *middlewareFixture) supportToken(t *testing.T, id, role string) string {
	t.Helper()
	token, err := f.codec.Encode(TokenPayload{
		IdentityID: id,
		Role:       role,
		IssuedAt:   f.now,
		ExpiresAt:  f.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return token
}

func (f *middlewareFixture) customerSession(t *testing.T) string {
	t.Helper()
	s, err := f.store.Create(context.Background(), domain.DomainCustomer, "cust-1", "member", "org-7")
	require.NoError(t, err)
	return s.ID
}

type response struct {
	status int
	body   map[string]any
	raw    string
}

func (f *middlewareFixture) do(t *testing.T, method, path string, cookies map[string]string) response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, raw: string(raw)}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func identityOf(t *testing.T, r response) map[string]any {
	t.Helper()
	identity, ok := r.body["identity"].(map[string]any)
	require.True(t, ok, "no identity in %s", r.raw)
	return identity
}

// ---------------------------------------------------------------------------
// Single domain
// ---------------------------------------------------------------------------

func TestAuthMiddleware_NoCredentials(t *testing.T) {
	f := newMiddlewareFixture(t)

	for _, p := range []string{"/api/jobs", "/support/api/admin/users", "/support/api/me"} {
		r := f.do(t, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusUnauthorized, r.status, p)
	}
}

func TestAuthMiddleware_PublicLoginPaths(t *testing.T) {
	f := newMiddlewareFixture(t)

	for _, p := range []string{"/api/auth/login", "/support/api/auth/login"} {
		r := f.do(t, http.MethodPost, p, nil)
		assert.Equal(t, http.StatusOK, r.status, p)
		assert.Nil(t, r.body["identity"])
	}
}

func TestAuthMiddleware_PublicPathsAttachNoIdentity(t *testing.T) {
	f := newMiddlewareFixture(t)

	r := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		CookieSupportToken:    f.supportToken(t, "u1", "support_admin"),
		CookieCustomerSession: f.customerSession(t),
	})
	assert.Equal(t, http.StatusOK, r.status)
	assert.Nil(t, r.body["identity"])
}

func TestAuthMiddleware_SupportTokenScenario(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.supportToken(t, "u1", "support_admin")

	r := f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportToken: token})
	require.Equal(t, http.StatusOK, r.status)
	identity := identityOf(t, r)
	assert.Equal(t, "support", identity["domain"])
	assert.Equal(t, "u1", identity["identity_id"])
	assert.Equal(t, "support_admin", identity["role"])

	r = f.do(t, http.MethodGet, "/api/customers", map[string]string{CookieSupportToken: token})
	assert.Equal(t, http.StatusForbidden, r.status)
}

func TestAuthMiddleware_SupportTokenRejectedOnTenantEndpoints(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.supportToken(t, "u1", "support_admin")

	for _, p := range []string{"/api/customers", "/api/jobs", "/api/quotes", "/api/invoices", "/api/members", "/api/equipment"} {
		r := f.do(t, http.MethodGet, p, map[string]string{CookieSupportToken: token})
		assert.Equal(t, http.StatusForbidden, r.status, p)
	}
}

func TestAuthMiddleware_CustomerSessionRejectedOnSupportEndpoints(t *testing.T) {
	f := newMiddlewareFixture(t)
	sid := f.customerSession(t)

	for _, p := range []string{"/support/api/admin/users", "/support/api/me"} {
		r := f.do(t, http.MethodGet, p, map[string]string{CookieCustomerSession: sid})
		assert.Contains(t, []int{http.StatusUnauthorized, http.StatusForbidden}, r.status, p)
	}
}

func TestAuthMiddleware_CustomerSession(t *testing.T) {
	f := newMiddlewareFixture(t)
	sid := f.customerSession(t)

	r := f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieCustomerSession: sid})
	require.Equal(t, http.StatusOK, r.status)
	identity := identityOf(t, r)
	assert.Equal(t, "customer", identity["domain"])
	assert.Equal(t, "cust-1", identity["identity_id"])
	assert.Equal(t, "org-7", identity["organization_id"])
}

func TestAuthMiddleware_CustomerSessionIDInSupportCookieIsIgnored(t *testing.T) {
	f := newMiddlewareFixture(t)
	sid := f.customerSession(t)

	r := f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieSupportSession: sid})
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportSession: sid})
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestAuthMiddleware_SupportSessionCookieAloneIsNotAuthority(t *testing.T) {
	f := newMiddlewareFixture(t)
	s, err := f.store.Create(context.Background(), domain.DomainSupport, "u1", "support_admin", "")
	require.NoError(t, err)

	r := f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportSession: s.ID})
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestAuthMiddleware_SupportSessionIDAsCustomerCookie(t *testing.T) {
	f := newMiddlewareFixture(t)
	s, err := f.store.Create(context.Background(), domain.DomainSupport, "u1", "support_admin", "")
	require.NoError(t, err)

	r := f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieCustomerSession: s.ID})
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

// ---------------------------------------------------------------------------
// Both domains present
// ---------------------------------------------------------------------------

func TestAuthMiddleware_BothDomainsNoPrivilegeMerge(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.supportToken(t, "u1", "support_admin")
	sid := f.customerSession(t)
	both := map[string]string{CookieSupportToken: token, CookieCustomerSession: sid}

	r := f.do(t, http.MethodGet, "/api/jobs", both)
	require.Equal(t, http.StatusOK, r.status)
	identity := identityOf(t, r)
	assert.Equal(t, "customer", identity["domain"])
	assert.Equal(t, "member", identity["role"])

	r = f.do(t, http.MethodGet, "/support/api/admin/users", both)
	require.Equal(t, http.StatusOK, r.status)
	identity = identityOf(t, r)
	assert.Equal(t, "support", identity["domain"])
	assert.Equal(t, "u1", identity["identity_id"])
	assert.Empty(t, identity["organization_id"])
}

func TestAuthMiddleware_SupportTokenDoesNotStandInForMissingCustomerSession(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.supportToken(t, "u1", "support_admin")

	r := f.do(t, http.MethodGet, "/api/jobs", map[string]string{
		CookieSupportToken:    token,
		CookieCustomerSession: "destroyed-or-unknown",
	})
	assert.Equal(t, http.StatusForbidden, r.status)
}

func TestAuthMiddleware_CustomerSessionDoesNotStandInForInvalidSupportToken(t *testing.T) {
	f := newMiddlewareFixture(t)
	sid := f.customerSession(t)

	r := f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{
		CookieSupportToken:    "garbage.token",
		CookieCustomerSession: sid,
	})
	assert.Equal(t, http.StatusForbidden, r.status)
}

// ---------------------------------------------------------------------------
// Uniform failures
// ---------------------------------------------------------------------------

func TestAuthMiddleware_FakeSignatureIs401(t *testing.T) {
	f := newMiddlewareFixture(t)
	raw, err := json.Marshal(map[string]any{
		"supportUserId": "u1",
		"role":          "support_admin",
		"issuedAt":      f.now.UnixMilli(),
		"expiresAt":     f.now.Add(2 * time.Hour).UnixMilli(),
	})
	require.NoError(t, err)
	fake := base64.RawURLEncoding.EncodeToString(raw) + ".fake"

	_, err = f.codec.Decode(fake)
	require.ErrorIs(t, err, ErrInvalidSignature)

	for _, p := range []string{"/support/api/admin/users", "/support/api/me", "/api/jobs"} {
		r := f.do(t, http.MethodGet, p, map[string]string{CookieSupportToken: fake})
		assert.Equal(t, http.StatusUnauthorized, r.status, p)
	}
}

func TestAuthMiddleware_FailuresAreIndistinguishable(t *testing.T) {
	f := newMiddlewareFixture(t)

	expired, err := f.codec.Encode(TokenPayload{
		IdentityID: "u1",
		Role:       "support_admin",
		IssuedAt:   f.now.Add(-3 * time.Hour),
		ExpiresAt:  f.now.Add(-time.Hour),
	})
	require.NoError(t, err)
	valid := f.supportToken(t, "u1", "support_admin")
	otherCodec, err := NewTokenCodec("some-other-secret", time.Hour)
	require.NoError(t, err)
	forged, _, err := otherCodec.Issue("u1", "support_admin")
	require.NoError(t, err)

	variants := map[string]map[string]string{
		"missing":   nil,
		"malformed": {CookieSupportToken: "not-a-token"},
		"forged":    {CookieSupportToken: forged},
		"truncated": {CookieSupportToken: valid[:len(valid)-4]},
		"expired":   {CookieSupportToken: expired},
	}

	var baseline string
	for name, cookies := range variants {
		r := f.do(t, http.MethodGet, "/support/api/admin/users", cookies)
		assert.Equal(t, http.StatusUnauthorized, r.status, name)
		if baseline == "" {
			baseline = r.raw
		}
		assert.Equal(t, baseline, r.raw, name)
	}

	causes := map[string]bool{}
	for _, entry := range f.logs.FilterMessage("support token rejected").All() {
		for _, field := range entry.Context {
			if field.Key == "error" {
				causes[field.Interface.(error).Error()] = true
			}
		}
	}
	assert.True(t, causes[ErrMalformedToken.Error()])
	assert.True(t, causes[ErrInvalidSignature.Error()])
	assert.True(t, causes[ErrExpired.Error()])
}

func TestAuthMiddleware_UnknownCustomerSessionIs401(t *testing.T) {
	f := newMiddlewareFixture(t)
	sid := f.customerSession(t)
	require.NoError(t, f.store.Destroy(context.Background(), domain.DomainCustomer, sid))

	r := f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieCustomerSession: sid})
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, 1, f.logs.FilterMessage("session rejected").Len())
}

func TestAuthMiddleware_UnlistedPathDeniesEveryone(t *testing.T) {
	f := newMiddlewareFixture(t)

	r := f.do(t, http.MethodGet, "/internal/debug", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = f.do(t, http.MethodGet, "/internal/debug", map[string]string{CookieSupportToken: f.supportToken(t, "u1", "support_admin")})
	assert.Equal(t, http.StatusForbidden, r.status)
}

func TestAuthMiddleware_RecordsDecisions(t *testing.T) {
	f := newMiddlewareFixture(t)
	token := f.supportToken(t, "u1", "support_admin")

	f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportToken: token})
	f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieSupportToken: token})
	f.do(t, http.MethodGet, "/api/jobs", nil)
	f.do(t, http.MethodPost, "/api/auth/login", nil)

	assert.Equal(t, 1, f.recorder.counts["allowed/support"])
	assert.Equal(t, 1, f.recorder.counts["denied/support"])
	assert.Equal(t, 1, f.recorder.counts["unauthenticated/none"])
	assert.Equal(t, 1, f.recorder.counts["public/none"])
}

// ---------------------------------------------------------------------------
// Strict support sessions
// ---------------------------------------------------------------------------

func TestAuthMiddleware_SupportSessionRequired(t *testing.T) {
	f := newMiddlewareFixture(t, WithSupportSessionRequired(true))
	token := f.supportToken(t, "u1", "support_admin")
	ctx := context.Background()

	r := f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportToken: token})
	assert.Equal(t, http.StatusUnauthorized, r.status)

	own, err := f.store.Create(ctx, domain.DomainSupport, "u1", "support_admin", "")
	require.NoError(t, err)
	r = f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportToken: token, CookieSupportSession: own.ID})
	assert.Equal(t, http.StatusOK, r.status)

	other, err := f.store.Create(ctx, domain.DomainSupport, "u2", "support_agent", "")
	require.NoError(t, err)
	r = f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportToken: token, CookieSupportSession: other.ID})
	assert.Equal(t, http.StatusUnauthorized, r.status)

	require.NoError(t, f.store.Destroy(ctx, domain.DomainSupport, own.ID))
	r = f.do(t, http.MethodGet, "/support/api/admin/users", map[string]string{CookieSupportToken: token, CookieSupportSession: own.ID})
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

// ---------------------------------------------------------------------------
// Backend failures
// ---------------------------------------------------------------------------

type failingStore struct {
	session.Store
}

func (failingStore) Find(context.Context, domain.Domain, string) (domain.Session, error) {
	return domain.Session{}, assert.AnError
}

func TestAuthMiddleware_StoreFailureIsInternalError(t *testing.T) {
	codec := newTestCodec(t, time.Now())
	mw := NewAuthMiddleware(NewCookieAdapter(codec, CookieSettings{}, nil), failingStore{}, MustPolicyMatrix(DefaultRules()...), nil)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Use(mw.Handle)
	app.Get("/api/jobs", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.AddCookie(&http.Cookie{Name: CookieCustomerSession, Value: "sid"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

type customerFailingStore struct {
	session.Store
}

func (s customerFailingStore) Find(ctx context.Context, d domain.Domain, id string) (domain.Session, error) {
	if d == domain.DomainCustomer {
		return domain.Session{}, assert.AnError
	}
	return s.Store.Find(ctx, d, id)
}

func TestAuthMiddleware_OtherDomainFailureDoesNotBlockAllowedDomain(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)
	mw := NewAuthMiddleware(NewCookieAdapter(codec, CookieSettings{}, nil), customerFailingStore{Store: session.NewMemoryStore()}, MustPolicyMatrix(DefaultRules()...), nil)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Use(mw.Handle)
	app.Get("/support/api/admin/users", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	token, err := codec.Encode(TokenPayload{IdentityID: "u1", Role: "support_admin", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/support/api/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: CookieSupportToken, Value: token})
	req.AddCookie(&http.Cookie{Name: CookieCustomerSession, Value: "stray-sid"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/support/api/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: CookieCustomerSession, Value: "stray-sid"})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type findCounter struct {
	session.Store
	mu    sync.Mutex
	finds map[domain.Domain]int
}

func (s *findCounter) Find(ctx context.Context, d domain.Domain, id string) (domain.Session, error) {
	s.mu.Lock()
	s.finds[d]++
	s.mu.Unlock()
	return s.Store.Find(ctx, d, id)
}

func TestAuthMiddleware_AllowedDomainResolvedFirst(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)
	inner := session.NewMemoryStore()
	store := &findCounter{Store: inner, finds: map[domain.Domain]int{}}
	mw := NewAuthMiddleware(NewCookieAdapter(codec, CookieSettings{}, nil), store, MustPolicyMatrix(DefaultRules()...), nil)

	app := fiber.New()
	app.Use(mw.Handle)
	app.Get("/support/api/me", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	cust, err := inner.Create(context.Background(), domain.DomainCustomer, "cust-1", "member", "org-7")
	require.NoError(t, err)
	token, err := codec.Encode(TokenPayload{IdentityID: "u1", Role: "support_agent", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/support/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieSupportToken, Value: token})
	req.AddCookie(&http.Cookie{Name: CookieCustomerSession, Value: cust.ID})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, store.finds[domain.DomainCustomer])
}

func TestAuthMiddleware_SessionSurvivesLaterRequests(t *testing.T) {
	f := newMiddlewareFixture(t)
	ctx := context.Background()
	sid := f.customerSession(t)

	r := f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieCustomerSession: sid})
	require.Equal(t, http.StatusOK, r.status)

	// Same shape, different value: lands on the same request buffer offsets.
	r = f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieCustomerSession: strings.Repeat("A", len(sid))})
	require.Equal(t, http.StatusUnauthorized, r.status)

	got, err := f.store.Find(ctx, domain.DomainCustomer, sid)
	require.NoError(t, err)
	assert.Equal(t, sid, got.ID)

	require.NoError(t, f.store.Destroy(ctx, domain.DomainCustomer, sid))
	assert.Zero(t, f.store.Len(domain.DomainCustomer))

	r = f.do(t, http.MethodGet, "/api/jobs", map[string]string{CookieCustomerSession: sid})
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
