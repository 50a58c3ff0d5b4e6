package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// Cookie names. Each belongs to exactly one domain.
const (
	CookieCustomerSession = "sid"
	CookieSupportSession  = "support_sid"
	CookieSupportToken    = "support_token"
)

var expiredCookieTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// CookieSettings controls the attributes written on every auth cookie.
type CookieSettings struct {
	Domain         string
	Secure         bool
	CustomerMaxAge time.Duration
}

// CookieAdapter is the only place that knows which cookie carries which domain.
type CookieAdapter struct {
	codec    *TokenCodec
	settings CookieSettings
	logger   *zap.Logger
}

// NewCookieAdapter constructs the adapter.
func NewCookieAdapter(codec *TokenCodec, settings CookieSettings, logger *zap.Logger) *CookieAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CookieAdapter{codec: codec, settings: settings, logger: logger}
}

// ReadSupportIdentity decodes the support token cookie. Absent and invalid
// tokens are indistinguishable to the caller; the cause is only logged.
func (a *CookieAdapter) ReadSupportIdentity(c *fiber.Ctx) (TokenPayload, bool) {
	raw := readCookie(c, CookieSupportToken)
	if raw == "" {
		return TokenPayload{}, false
	}
	payload, err := a.codec.Decode(raw)
	if err != nil {
		a.logger.Debug("support token rejected",
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Error(err),
		)
		return TokenPayload{}, false
	}
	return payload, true
}

// ReadCustomerSession returns the customer session id. Support cookies are never consulted.
func (a *CookieAdapter) ReadCustomerSession(c *fiber.Ctx) (string, bool) {
	sid := readCookie(c, CookieCustomerSession)
	return sid, sid != ""
}

// ReadSupportSession returns the support session id.
func (a *CookieAdapter) ReadSupportSession(c *fiber.Ctx) (string, bool) {
	sid := readCookie(c, CookieSupportSession)
	return sid, sid != ""
}

// SetCustomerSession writes the customer session cookie.
func (a *CookieAdapter) SetCustomerSession(c *fiber.Ctx, sessionID string) {
	cookie := a.base(CookieCustomerSession, sessionID, fiber.CookieSameSiteLaxMode)
	if a.settings.CustomerMaxAge > 0 {
		cookie.MaxAge = int(a.settings.CustomerMaxAge / time.Second)
	} else {
		cookie.SessionOnly = true
	}
	c.Cookie(cookie)
}

// SetSupportSession writes both support cookies, expiring with the token.
func (a *CookieAdapter) SetSupportSession(c *fiber.Ctx, sessionID, token string, expiresAt time.Time) {
	for name, value := range map[string]string{
		CookieSupportSession: sessionID,
		CookieSupportToken:   token,
	} {
		cookie := a.base(name, value, fiber.CookieSameSiteStrictMode)
		cookie.Expires = expiresAt.UTC()
		c.Cookie(cookie)
	}
}

// ClearCustomer expires the customer cookie.
func (a *CookieAdapter) ClearCustomer(c *fiber.Ctx) {
	a.expire(c, CookieCustomerSession, fiber.CookieSameSiteLaxMode)
}

// ClearSupport expires both support cookies.
func (a *CookieAdapter) ClearSupport(c *fiber.Ctx) {
	a.expire(c, CookieSupportSession, fiber.CookieSameSiteStrictMode)
	a.expire(c, CookieSupportToken, fiber.CookieSameSiteStrictMode)
}

// readCookie copies the value out of fasthttp's request buffer, which is
// reused once the handler returns.
func readCookie(c *fiber.Ctx, name string) string {
	return utils.CopyString(c.Cookies(name))
}

func (a *CookieAdapter) expire(c *fiber.Ctx, name, sameSite string) {
	cookie := a.base(name, "", sameSite)
	cookie.Expires = expiredCookieTime
	c.Cookie(cookie)
}

func (a *CookieAdapter) base(name, value, sameSite string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   a.settings.Domain,
		Secure:   a.settings.Secure,
		HTTPOnly: true,
		SameSite: sameSite,
	}
}
