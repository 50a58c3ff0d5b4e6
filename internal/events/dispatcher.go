package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher routes auth events to subscribers. A subscription may be scoped
// to one identity domain so support and customer handlers never see each
// other's events.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	SubscribeDomain(eventType EventType, d domain.Domain, handler EventHandler)
}

type subscription struct {
	// scope is empty for handlers that receive every domain.
	scope   domain.DomainSet
	handler EventHandler
}

func (s subscription) accepts(e Event) bool {
	return s.scope.Empty() || s.scope.Has(e.Domain)
}

type inMemoryDispatcher struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	logger *zap.Logger
}

// NewInMemoryDispatcher creates a synchronous dispatcher. Handler failures are
// logged and do not stop delivery to the remaining subscribers.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{
		subs:   make(map[EventType][]subscription),
		logger: logger,
	}
}

func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	subs := append([]subscription(nil), d.subs[event.Type]...)
	d.mu.RUnlock()

	for _, sub := range subs {
		if !sub.accepts(event) {
			continue
		}
		if err := sub.handler(ctx, event); err != nil {
			fields := []zap.Field{zap.String("event", string(event.Type)), zap.Error(err)}
			if event.Domain.Valid() {
				fields = append(fields, zap.String("domain", event.Domain.String()))
			}
			d.logger.Warn("event handler failed", fields...)
		}
	}
	return nil
}

func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.add(eventType, subscription{handler: handler})
}

// SubscribeDomain registers a handler that only receives events of domain dom.
// Events without a domain, such as sweeps, are not delivered to it.
func (d *inMemoryDispatcher) SubscribeDomain(eventType EventType, dom domain.Domain, handler EventHandler) {
	d.add(eventType, subscription{scope: domain.NewDomainSet(dom), handler: handler})
}

func (d *inMemoryDispatcher) add(eventType EventType, sub subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[eventType] = append(d.subs[eventType], sub)
}
