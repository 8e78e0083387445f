package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/internal/analytics/router"
	"github.com/mianhamzaathar/AIFORGE/internal/analytics/types"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox"
)

func TestBuildEnvelope(t *testing.T) {
	payload := outbox.PayloadEnvelope{
		EventID:    "evt-1",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(`{"entry_id":"e-1"}`),
	}
	msg := buildMessage(payload, map[string]string{
		"event_type":     "ledger_debited",
		"aggregate_type": "account",
		"aggregate_id":   "acct-1",
	})

	env, err := buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventType != enums.EventLedgerDebited {
		t.Fatalf("unexpected event type %v", env.EventType)
	}
	if env.AggregateType != enums.AggregateAccount {
		t.Fatalf("unexpected aggregate type %v", env.AggregateType)
	}
	if env.AggregateID != "acct-1" {
		t.Fatalf("unexpected aggregate id %s", env.AggregateID)
	}
	if env.EventID != "evt-1" {
		t.Fatalf("unexpected event id %s", env.EventID)
	}
	if env.Version != 1 {
		t.Fatalf("unversioned envelopes read as v1, got %d", env.Version)
	}
	if !env.OccurredAt.Equal(payload.OccurredAt) {
		t.Fatalf("unexpected occurred at %v", env.OccurredAt)
	}
	if string(env.Payload) != `{"entry_id":"e-1"}` {
		t.Fatalf("unexpected payload %s", env.Payload)
	}
}

func TestBuildEnvelopeFallsBackToAttributes(t *testing.T) {
	created := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	msg := buildMessage(outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, map[string]string{
		"event_id":       "evt-attr",
		"event_type":     "ledger_credited",
		"aggregate_type": "account",
		"aggregate_id":   "acct-1",
		"created_at":     created.Format(time.RFC3339Nano),
	})

	env, err := buildEnvelope(msg)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventID != "evt-attr" {
		t.Fatalf("expected attribute event id, got %s", env.EventID)
	}
	if !env.OccurredAt.Equal(created) {
		t.Fatalf("expected created_at fallback, got %v", env.OccurredAt)
	}
}

func TestBuildEnvelopeRejectsMissingFields(t *testing.T) {
	cases := map[string]map[string]string{
		"event type":   {"aggregate_type": "account", "aggregate_id": "a"},
		"aggregate":    {"event_type": "ledger_debited", "aggregate_id": "a"},
		"aggregate id": {"event_type": "ledger_debited", "aggregate_type": "account"},
	}
	for name, attrs := range cases {
		t.Run(name, func(t *testing.T) {
			msg := buildMessage(outbox.PayloadEnvelope{EventID: "evt"}, attrs)
			if _, err := buildEnvelope(msg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestProcessHandlesNewEvent(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildLedgerMessage(t))
	if res == nack {
		t.Fatal("expected ack")
	}
	if !handler.called {
		t.Fatal("handler should be invoked")
	}
	if handler.envelope.EventType != enums.EventLedgerDebited {
		t.Fatalf("unexpected event type %s", handler.envelope.EventType)
	}
	if len(manager.checked) != 1 || len(manager.deleted) != 0 {
		t.Fatalf("unexpected idempotency calls checked=%d deleted=%d", len(manager.checked), len(manager.deleted))
	}
}

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{checkResult: true}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildLedgerMessage(t))
	if res == nack {
		t.Fatalf("expected ack, got nack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked when already processed")
	}
	if len(manager.checked) != 1 {
		t.Fatalf("expected check once, got %d", len(manager.checked))
	}
}

func TestProcessIdempotencyErrorNacks(t *testing.T) {
	manager := &stubManager{checkErr: errors.New("redis down")}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	if res := svc.process(context.Background(), buildLedgerMessage(t)); res != nack {
		t.Fatal("expected nack when idempotency check fails")
	}
	if handler.called {
		t.Fatal("handler should not run")
	}
}

func TestProcessHandlerErrorRetries(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("boom")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildLedgerMessage(t))
	if res != nack {
		t.Fatalf("expected nack on handler error")
	}
	if len(manager.deleted) != 1 {
		t.Fatalf("expected idempotency delete on failure")
	}
}

func TestProcessInvalidEnvelope(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), &gcppubsub.Message{Data: []byte("invalid json")})
	if res == nack {
		t.Fatalf("invalid envelope should ack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked")
	}
	if len(manager.checked) != 0 {
		t.Fatalf("idempotency manager should not be touched")
	}
}

func TestProcessInvalidEventID(t *testing.T) {
	manager := &stubManager{}
	svc := newTestServiceWithDeps(t, &stubHandler{}, manager)

	msg := buildMessage(outbox.PayloadEnvelope{EventID: "not-a-uuid", Data: json.RawMessage(`{}`)}, map[string]string{
		"event_type":     "ledger_debited",
		"aggregate_type": "account",
		"aggregate_id":   "acct-1",
	})
	if res := svc.process(context.Background(), msg); res == nack {
		t.Fatal("invalid event id should ack")
	}
	if len(manager.checked) != 0 {
		t.Fatal("idempotency manager should not be touched")
	}
}

func TestProcessUnsupportedEvent(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: router.ErrUnsupportedEventType}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildLedgerMessage(t))
	if res == nack {
		t.Fatalf("unsupported event should ack")
	}
	if len(manager.deleted) != 0 {
		t.Fatalf("idempotency delete should not run")
	}
}

func TestNewServiceValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	if _, err := NewService(nil, &stubHandler{}, &stubManager{}, logg); err == nil {
		t.Fatal("expected error without subscription")
	}
	sub := &gcppubsub.Subscriber{}
	if _, err := NewService(sub, nil, &stubManager{}, logg); err == nil {
		t.Fatal("expected error without handler")
	}
	if _, err := NewService(sub, &stubHandler{}, nil, logg); err == nil {
		t.Fatal("expected error without manager")
	}
	if _, err := NewService(sub, &stubHandler{}, &stubManager{}, nil); err == nil {
		t.Fatal("expected error without logger")
	}
}

func buildLedgerMessage(t *testing.T) *gcppubsub.Message {
	t.Helper()
	payload := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"amount":-50}`),
	}
	return buildMessage(payload, map[string]string{
		"event_type":     "ledger_debited",
		"aggregate_type": "account",
		"aggregate_id":   uuid.NewString(),
	})
}

func buildMessage(payload outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	data, _ := json.Marshal(payload)
	return &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: attrs,
	}
}

func newTestServiceWithDeps(t *testing.T, handler Handler, manager *stubManager) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}),
	}
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(ctx context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubManager struct {
	checkResult bool
	checkErr    error
	deleteErr   error
	checked     []uuid.UUID
	deleted     []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	return s.deleteErr
}
