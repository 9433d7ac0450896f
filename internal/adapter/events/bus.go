// Package events delivers domain events to in-process subscribers and relays
// them to the message queue.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

// Bus is a synchronous, typed publish/subscribe registry. Handlers run on the
// publishing goroutine in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind]map[uint64]ports.EventHandler
	order    map[domain.EventKind][]uint64
	nextID   uint64
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[domain.EventKind]map[uint64]ports.EventHandler),
		order:    make(map[domain.EventKind][]uint64),
		log:      log,
	}
}

type subscription struct {
	bus  *Bus
	kind domain.EventKind
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.kind, s.id) })
}

func (b *Bus) Subscribe(kind domain.EventKind, handler ports.EventHandler) ports.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uint64]ports.EventHandler)
	}
	b.handlers[kind][id] = handler
	b.order[kind] = append(b.order[kind], id)

	return &subscription{bus: b, kind: kind, id: id}
}

func (b *Bus) Publish(event domain.Event) {
	kind := event.Kind()

	b.mu.RLock()
	ids := b.order[kind]
	handlers := make([]ports.EventHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[kind][id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(kind, h, event)
	}
}

// Subscribers reports the live handler count for kind.
func (b *Bus) Subscribers(kind domain.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order[kind])
}

func (b *Bus) dispatch(kind domain.EventKind, h ports.EventHandler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panicked",
				zap.String("kind", string(kind)),
				zap.Any("panic", r),
			)
		}
	}()
	h(event)
}

func (b *Bus) remove(kind domain.EventKind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers[kind], id)
	ids := b.order[kind]
	for i, v := range ids {
		if v == id {
			b.order[kind] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(b.order[kind]) == 0 {
		delete(b.order, kind)
		delete(b.handlers, kind)
	}
}
