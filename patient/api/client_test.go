package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"doctors": []Doctor{}})
	}))
	defer srv.Close()

	session := &Session{}
	session.SetToken("tok123")
	client := NewClient(srv.URL, session)

	if _, err := client.TopRatedDoctors(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("expected Bearer tok123, got %q", gotAuth)
	}
}

func TestClientPropagatesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Your card was declined."})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &Session{})
	_, err := client.CreateBookingIntent(context.Background(), "doc1", IntentOptions{Amount: 5000, Currency: "egp"})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", apiErr.Status)
	}
	if apiErr.Message != "Your card was declined." {
		t.Fatalf("expected verbatim decline message, got %q", apiErr.Message)
	}
}

func TestCreateBookingIntentWrapsOptions(t *testing.T) {
	var gotBody map[string]IntentOptions
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/booking/book-intent/doc1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]PaymentIntent{
			"paymentIntent": {ID: "pi_1", ClientSecret: "pi_1_secret_x", Status: "requires_payment_method"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &Session{})
	intent, err := client.CreateBookingIntent(context.Background(), "doc1", IntentOptions{
		Amount:                  5000,
		Currency:                "egp",
		AutomaticPaymentMethods: &AutomaticPaymentMethods{Enabled: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts, ok := gotBody["options"]
	if !ok {
		t.Fatal("expected body wrapped in options key")
	}
	if opts.Amount != 5000 || opts.Currency != "egp" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.AutomaticPaymentMethods == nil || !opts.AutomaticPaymentMethods.Enabled {
		t.Fatal("expected automatic_payment_methods enabled")
	}
	if intent.ID != "pi_1" {
		t.Fatalf("expected pi_1, got %q", intent.ID)
	}
}

func TestUpdateAppointmentSendsDayAndSlotOnly(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &Session{})
	if err := client.UpdateAppointment(context.Background(), "abc123", "2025-06-10", "09:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/booking/update-booking/abc123" {
		t.Fatalf("expected PUT /booking/update-booking/abc123, got %s %s", gotMethod, gotPath)
	}
	if len(gotBody) != 2 || gotBody["day"] != "2025-06-10" || gotBody["slot"] != "09:00" {
		t.Fatalf("expected day and slot only, got %v", gotBody)
	}
}
