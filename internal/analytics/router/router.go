package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mianhamzaathar/AIFORGE/internal/analytics/types"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/payloads"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertUsage(ctx context.Context, row types.UsageRow) error
}

// Decoder turns a versioned payload into its typed event.
type Decoder interface {
	Decode(eventType enums.OutboxEventType, version int, raw json.RawMessage) (any, error)
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope, payload any) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	return fn(ctx, envelope, payload)
}

// Router decodes each envelope and hands it to the handler for its event type.
type Router struct {
	decoder  Decoder
	handlers map[enums.OutboxEventType]Handler
}

// NewRouter installs the usage and account handlers; overrides replace the
// handler of an event type the router already knows.
func NewRouter(writer Writer, decoder Decoder, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case decoder == nil:
		return nil, errors.New("decoder is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}

	usage := &usageHandler{writer: writer}
	handlers := map[enums.OutboxEventType]Handler{
		enums.EventLedgerDebited:  usage,
		enums.EventLedgerCredited: usage,
		enums.EventAccountCreated: &accountCreatedHandler{logg: logg},
	}
	for eventType, h := range overrides {
		if _, known := handlers[eventType]; known && h != nil {
			handlers[eventType] = h
		}
	}
	return &Router{decoder: decoder, handlers: handlers}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	h, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	payload, err := r.decoder.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if errors.Is(err, registry.ErrUnknownVersion) {
		return fmt.Errorf("%w: %w", ErrUnsupportedEventType, err)
	}
	if err != nil {
		return err
	}
	return h.Handle(ctx, envelope, payload)
}

type usageHandler struct {
	writer Writer
}

func (h *usageHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	if !envelope.EventType.IsLedgerMutation() {
		return fmt.Errorf("%w: %s is not a ledger mutation", ErrUnsupportedEventType, envelope.EventType)
	}
	event, ok := payload.(*payloads.LedgerEntryEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, envelope.EventType)
	}

	occurredAt := event.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = envelope.OccurredAt
	}

	return h.writer.InsertUsage(ctx, types.UsageRow{
		EventID:      envelope.EventID,
		EventType:    string(envelope.EventType),
		AccountID:    event.AccountID.String(),
		EntryID:      event.EntryID.String(),
		Sequence:     event.Sequence,
		Amount:       event.Amount,
		Kind:         string(event.Kind),
		BalanceAfter: event.BalanceAfter,
		Reference:    event.Reference,
		OccurredAt:   occurredAt.UTC(),
	})
}

// Account creation carries no usage; it is logged and acknowledged.
type accountCreatedHandler struct {
	logg *logger.Logger
}

func (h *accountCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.AccountCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, envelope.EventType)
	}
	ctx = h.logg.WithFields(ctx, map[string]any{
		"account_id":      event.AccountID.String(),
		"initial_balance": event.InitialBalance,
		"plan":            event.Plan,
	})
	h.logg.Info(ctx, "account created event observed")
	return nil
}
