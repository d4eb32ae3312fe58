package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/careslot/careslot/services/booking-service/internal/payments"
	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

func TestCreateSetupIntentBindsCustomerOnFirstUse(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1", Fullname: "Omar Adel", Email: "omar@example.com"}}
	gateway := &fakeGateway{
		customerID:  "cus_new",
		setupIntent: payments.Intent{ID: "seti_1", ClientSecret: "seti_1_secret_a", Status: "requires_payment_method"},
	}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.CreateSetupIntent, http.MethodPost, "/payment/create-setup-intent", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.user.StripeCustomer != "cus_new" {
		t.Fatalf("expected customer bound to user, got %q", store.user.StripeCustomer)
	}
	if len(gateway.ensuredEmails) != 1 || gateway.ensuredEmails[0] != "omar@example.com" {
		t.Fatalf("expected customer created with user email, got %v", gateway.ensuredEmails)
	}

	var out struct {
		SetupIntent struct {
			ClientSecret string `json:"client_secret"`
		} `json:"setupIntent"`
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.SetupIntent.ClientSecret != "seti_1_secret_a" || out.Customer != "cus_new" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestCreateSetupIntentReusesExistingCustomer(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1", StripeCustomer: "cus_old"}}
	gateway := &fakeGateway{setupIntent: payments.Intent{ID: "seti_2"}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.CreateSetupIntent, http.MethodPost, "/payment/create-setup-intent", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(gateway.ensuredEmails) != 0 {
		t.Fatal("must not create a second processor customer")
	}
	if store.user.StripeCustomer != "cus_old" {
		t.Fatalf("stored customer must not change, got %q", store.user.StripeCustomer)
	}
}

func TestListPaymentMethodsWithoutCustomer(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1"}}
	h := newTestHandler(store, &stubEvents{}, &fakeGateway{})

	rec := doRequest(h.ListPaymentMethods, http.MethodGet, "/payment/payment-methods", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out struct {
		Customer string         `json:"customer"`
		Cards    []cardResponse `json:"cards"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Customer != "" || len(out.Cards) != 0 {
		t.Fatalf("expected empty wallet, got %+v", out)
	}
}

func TestRemovePaymentMethodDetachesOwnCard(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1", StripeCustomer: "cus_1"}}
	gateway := &fakeGateway{cards: []payments.Card{{ID: "pm_1", Brand: "visa", Last4: "4242"}}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.RemovePaymentMethod, http.MethodPost, "/payment/remove-payment-method", `{"pm_id":"pm_1"}`, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gateway.detached) != 1 || gateway.detached[0] != "pm_1" {
		t.Fatalf("expected pm_1 detached, got %v", gateway.detached)
	}
}

func TestRemovePaymentMethodRejectsForeignCard(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1", StripeCustomer: "cus_1"}}
	gateway := &fakeGateway{cards: []payments.Card{{ID: "pm_1"}}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.RemovePaymentMethod, http.MethodPost, "/payment/remove-payment-method", `{"pm_id":"pm_victims_card"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(gateway.detached) != 0 {
		t.Fatalf("foreign payment method must not be detached, got %v", gateway.detached)
	}
}

func TestRemovePaymentMethodWithoutCustomer(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1"}}
	gateway := &fakeGateway{}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.RemovePaymentMethod, http.MethodPost, "/payment/remove-payment-method", `{"pm_id":"pm_1"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(gateway.detached) != 0 {
		t.Fatalf("nothing should be detached, got %v", gateway.detached)
	}
}

func TestListPaymentMethodsReturnsCards(t *testing.T) {
	store := &stubStore{user: storage.UserBilling{ID: "user-1", StripeCustomer: "cus_1"}}
	gateway := &fakeGateway{cards: []payments.Card{
		{ID: "pm_1", Brand: "visa", Last4: "4242", ExpMonth: 4, ExpYear: 2027},
	}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.ListPaymentMethods, http.MethodGet, "/payment/payment-methods", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out struct {
		Cards []cardResponse `json:"cards"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Cards) != 1 || out.Cards[0].Last4 != "4242" || out.Cards[0].Brand != "visa" {
		t.Fatalf("unexpected cards: %+v", out.Cards)
	}
}
