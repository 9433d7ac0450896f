package events

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

// SubjectPrefix is prepended to every relayed subject.
const SubjectPrefix = "kogoto."

type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subject maps an event kind to its queue subject, e.g. "wallet:update"
// becomes "kogoto.wallet.update".
func Subject(kind domain.EventKind) string {
	return SubjectPrefix + strings.ReplaceAll(string(kind), ":", ".")
}

// Relay forwards the given kinds from the bus to a message queue as JSON.
type Relay struct {
	pub  Publisher
	subs []ports.Subscription
	log  *zap.Logger
}

func NewRelay(bus ports.EventBus, pub Publisher, log *zap.Logger, kinds ...domain.EventKind) *Relay {
	r := &Relay{pub: pub, log: log}
	for _, kind := range kinds {
		r.subs = append(r.subs, bus.Subscribe(kind, r.forward))
	}
	log.Info("Event relay started", zap.Int("kinds", len(kinds)))
	return r
}

func (r *Relay) forward(ev domain.Event) {
	subject := Subject(ev.Kind())
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("Failed to encode event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := r.pub.Publish(subject, data); err != nil {
		r.log.Warn("Failed to relay event", zap.String("subject", subject), zap.Error(err))
	}
}

func (r *Relay) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}
