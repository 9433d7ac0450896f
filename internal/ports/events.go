package ports

import "github.com/kogoto-lab/kogoto/internal/domain"

type EventHandler func(domain.Event)

// Subscription is returned by EventBus.Subscribe. Unsubscribe is safe to call
// more than once.
type Subscription interface {
	Unsubscribe()
}

type EventBus interface {
	Subscribe(kind domain.EventKind, handler EventHandler) Subscription
	Publish(event domain.Event)
}
