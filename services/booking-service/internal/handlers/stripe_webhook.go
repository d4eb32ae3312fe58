package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

const (
	webhookMaxBody   = 64 << 10
	webhookTolerance = 5 * time.Minute
)

// WebhookHandler records processor events. Deliveries are verified
// against the endpoint signing secret and deduplicated on the
// provider event id, so Stripe's at-least-once retries are safe.
type WebhookHandler struct {
	store         PaymentEventStore
	signingSecret string
}

type PaymentEventStore interface {
	InsertPaymentEvent(ctx context.Context, evt storage.PaymentEvent) error
}

func NewWebhookHandler(store PaymentEventStore, signingSecret string) *WebhookHandler {
	return &WebhookHandler{store: store, signingSecret: signingSecret}
}

func (h *WebhookHandler) HandleStripeEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBody))
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "failed to read body")
		return
	}

	// Events may carry an older api_version than the SDK pin; the
	// signature is the gate, not the version.
	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.signingSecret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "charge.refunded":
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	var obj struct {
		ID            string `json:"id"`
		Amount        int64  `json:"amount"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	intentID := obj.ID
	if obj.PaymentIntent != "" {
		intentID = obj.PaymentIntent
	}

	err = h.store.InsertPaymentEvent(r.Context(), storage.PaymentEvent{
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PaymentIntent:   intentID,
		Amount:          obj.Amount,
		Payload:         event.Data.Raw,
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateProviderEvent) {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	w.WriteHeader(http.StatusOK)
}
