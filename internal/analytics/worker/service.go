package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/internal/analytics/router"
	"github.com/mianhamzaathar/AIFORGE/internal/analytics/types"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox"
)

const analyticsConsumerName = "analytics"

// Handler defines how to process analytics envelopes.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes ledger events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewService creates a new analytics worker service.
func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

type outcome int

const (
	ack outcome = iota
	nack
)

// Run consumes messages until ctx is canceled. Malformed and unsupported
// messages are acked; redelivery cannot fix them.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) outcome {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := buildEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":      envelope.EventID,
		"event_type":    envelope.EventType,
		"event_version": envelope.Version,
		"aggregate_id":  envelope.AggregateID,
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping message with non-uuid event id")
		return ack
	}

	seen, err := s.manager.CheckAndMarkProcessed(ctx, analyticsConsumerName, eventID)
	switch {
	case err != nil:
		s.logg.Error(ctx, "idempotency check failed", err)
		return nack
	case seen:
		s.logg.Debug(ctx, "duplicate analytics event skipped")
		return ack
	}

	err = s.handler.Handle(ctx, *envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
		return ack
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "unsupported analytics event")
		return ack
	}

	s.logg.Error(ctx, "analytics handler failed", err)
	// release the marker so the redelivery is not mistaken for a duplicate
	if delErr := s.manager.Delete(ctx, analyticsConsumerName, eventID); delErr != nil {
		s.logg.Error(ctx, "failed to release idempotency marker", delErr)
	}
	return nack
}

// buildEnvelope reads routing data from the message attributes and the body
// from the stored envelope. event_id and created_at attributes back up
// envelopes written before those fields existed.
func buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	env := &types.Envelope{
		EventID:       strings.TrimSpace(stored.EventID),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   attr("aggregate_id"),
		Version:       stored.Version,
		OccurredAt:    stored.OccurredAt.UTC(),
		Payload:       stored.Data,
	}
	if env.AggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}
	if env.EventID == "" {
		env.EventID = attr("event_id")
	}
	if env.EventID == "" {
		return nil, errors.New("event_id missing")
	}
	if stored.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			env.OccurredAt = created.UTC()
		}
	}
	return env, nil
}
