package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// RegisterAuditLog writes authentication events to one audit logger per
// domain ("audit.support", "audit.customer"). Domainless events such as
// session sweeps go to plain "audit".
func RegisterAuditLog(d Dispatcher, logger *zap.Logger) {
	audit := logger.Named("audit")
	for _, dom := range domain.Domains() {
		handler := auditHandler(audit.Named(dom.String()))
		for _, t := range []EventType{EventLoginSucceeded, EventLoginFailed, EventLogout} {
			d.SubscribeDomain(t, dom, handler)
		}
	}
	d.Subscribe(EventSessionsSwept, auditHandler(audit))
}

func auditHandler(logger *zap.Logger) EventHandler {
	return func(_ context.Context, e Event) error {
		fields := []zap.Field{
			zap.String("event_id", e.ID),
			zap.String("event", string(e.Type)),
			zap.Time("at", e.Timestamp),
		}
		if e.Domain.Valid() {
			fields = append(fields, zap.String("domain", e.Domain.String()))
		}
		if e.IdentityID != "" {
			fields = append(fields, zap.String("identity_id", e.IdentityID))
		}
		if e.Payload != nil {
			fields = append(fields, zap.Any("payload", e.Payload))
		}
		logger.Info("auth event", fields...)
		return nil
	}
}
