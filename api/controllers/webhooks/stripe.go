package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/mianhamzaathar/AIFORGE/api/responses"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// Stripe documents event payloads as well under this size.
const maxStripePayloadBytes = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeEventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeWebhook struct {
	svc      StripeWebhookService
	verifier stripeEventVerifier
	guard    stripeWebhookGuard
	logg     *logger.Logger
}

// StripeWebhook verifies and applies Stripe payment events. An event id is
// marked before handling and released again when handling fails, so Stripe's
// redelivery is processed; the ledger credit itself is idempotent by
// checkout session reference.
func StripeWebhook(svc StripeWebhookService, verifier stripeEventVerifier, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	h := &stripeWebhook{svc: svc, verifier: verifier, guard: guard, logg: logg}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil || h.verifier == nil || h.guard == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhooks are not configured"))
		return
	}

	event, err := h.verify(r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	if h.logg != nil {
		ctx = h.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "event_type": string(event.Type)})
	}

	duplicate, err := h.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check stripe event"))
		return
	}
	if duplicate {
		responses.WriteSuccess(w, map[string]any{"received": true, "duplicate": true})
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		if releaseErr := h.guard.Delete(ctx, event.ID); releaseErr != nil && h.logg != nil {
			h.logg.Error(ctx, "release stripe event guard", releaseErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	if h.logg != nil {
		h.logg.Info(ctx, "stripe event processed")
	}
	responses.WriteSuccess(w, map[string]any{"received": true})
}

func (h *stripeWebhook) verify(r *http.Request) (stripe.Event, error) {
	signature := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}

	payload, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxStripePayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.Newf(pkgerrors.CodeValidation, "payload exceeds %d bytes", tooLarge.Limit)
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}

	event, err := h.verifier.ConstructEvent(payload, signature)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify signature")
	}
	return event, nil
}
