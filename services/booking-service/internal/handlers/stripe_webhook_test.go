package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

const testSigningSecret = "whsec_test_secret"

func signPayload(payload string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte(ts + "." + payload))
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WebhookHandler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	h.HandleStripeEvent(rec, req)
	return rec
}

func succeededEvent(eventID, intentID string, amount int64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": %q, "amount": %d}}
	}`, eventID, intentID, amount)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := &stubStore{}
	h := NewWebhookHandler(store, testSigningSecret)

	payload := succeededEvent("evt_1", "pi_1", 5000)
	rec := postWebhook(h, payload, "t=123,v1=deadbeef")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.paymentEvents) != 0 {
		t.Fatal("unsigned event must not be recorded")
	}
}

func TestWebhookRejectsStaleSignature(t *testing.T) {
	store := &stubStore{}
	h := NewWebhookHandler(store, testSigningSecret)

	payload := succeededEvent("evt_1", "pi_1", 5000)
	rec := postWebhook(h, payload, signPayload(payload, time.Now().Add(-time.Hour)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookRecordsSucceededIntent(t *testing.T) {
	store := &stubStore{}
	h := NewWebhookHandler(store, testSigningSecret)

	payload := succeededEvent("evt_1", "pi_1", 5000)
	rec := postWebhook(h, payload, signPayload(payload, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.paymentEvents) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(store.paymentEvents))
	}
	evt := store.paymentEvents[0]
	if evt.ProviderEventID != "evt_1" || evt.PaymentIntent != "pi_1" || evt.Amount != 5000 {
		t.Fatalf("unexpected recorded event: %+v", evt)
	}
}

func TestWebhookDuplicateDeliveryIsOK(t *testing.T) {
	store := &stubStore{}
	h := NewWebhookHandler(store, testSigningSecret)

	payload := succeededEvent("evt_1", "pi_1", 5000)
	if rec := postWebhook(h, payload, signPayload(payload, time.Now())); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: expected 200, got %d", rec.Code)
	}

	store.paymentEventErr = storage.ErrDuplicateProviderEvent
	if rec := postWebhook(h, payload, signPayload(payload, time.Now())); rec.Code != http.StatusOK {
		t.Fatalf("retried delivery: expected 200, got %d", rec.Code)
	}
}

func TestWebhookAcceptsOlderAPIVersion(t *testing.T) {
	store := &stubStore{}
	h := NewWebhookHandler(store, testSigningSecret)

	payload := `{
		"id": "evt_3",
		"api_version": "2020-08-27",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_3", "amount": 5000}}
	}`
	rec := postWebhook(h, payload, signPayload(payload, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.paymentEvents) != 1 || store.paymentEvents[0].PaymentIntent != "pi_3" {
		t.Fatalf("unexpected recorded events: %+v", store.paymentEvents)
	}
}

func TestWebhookIgnoresUnrelatedEvents(t *testing.T) {
	store := &stubStore{}
	h := NewWebhookHandler(store, testSigningSecret)

	payload := `{"id": "evt_2", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`
	rec := postWebhook(h, payload, signPayload(payload, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.paymentEvents) != 0 {
		t.Fatal("unrelated events must not be recorded")
	}
}
