package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox"
)

// ResolvedEvent is an outbox row checked against its descriptor.
type ResolvedEvent struct {
	Descriptor Descriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry is the publisher's view of the catalog.
type EventRegistry struct {
	decoders *DecoderRegistry
	byType   map[enums.OutboxEventType]Descriptor
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.LedgerTopic == "" {
		return nil, errors.New("ledger topic is required")
	}
	descs := catalog(cfg.LedgerTopic)
	reg := &EventRegistry{
		decoders: newDecoderRegistry(descs),
		byType:   make(map[enums.OutboxEventType]Descriptor, len(descs)),
	}
	for _, d := range descs {
		reg.byType[d.EventType] = d
	}
	return reg, nil
}

// Resolve validates a row and decodes its payload. Every failure is
// permanent: a malformed row will not get better on retry.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unsupported event type %q", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s aggregates, row has %q", event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	env, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := r.decoders.Decode(event.EventType, env.Version, env.Data)
	if err != nil {
		return nil, Permanent(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
