package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careslot/careslot/services/booking-service/internal/model"
	"github.com/careslot/careslot/services/booking-service/internal/outbox"
	"github.com/careslot/careslot/services/booking-service/internal/payments"
	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type stubStore struct {
	doctor    storage.DoctorInfo
	doctorErr error
	createErr error
	created   []model.Appointment
	appt      model.Appointment
	apptErr   error
	updateErr error
	listed    []model.Appointment
	user      storage.UserBilling
	tx        *fakeTx

	paymentEvents   []storage.PaymentEvent
	paymentEventErr error
}

func (s *stubStore) Begin(context.Context) (pgx.Tx, error) {
	s.tx = &fakeTx{}
	return s.tx, nil
}

func (s *stubStore) GetDoctor(context.Context, string) (storage.DoctorInfo, error) {
	return s.doctor, s.doctorErr
}

func (s *stubStore) Create(_ context.Context, _ pgx.Tx, appt *model.Appointment) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, *appt)
	return "appt-1", nil
}

func (s *stubStore) GetForUpdate(context.Context, pgx.Tx, string, string) (model.Appointment, error) {
	return s.appt, s.apptErr
}

func (s *stubStore) UpdateSchedule(context.Context, pgx.Tx, string, string, string) error {
	return s.updateErr
}

func (s *stubStore) Cancel(context.Context, pgx.Tx, string) (time.Time, error) {
	return time.Now(), nil
}

func (s *stubStore) ListByUser(context.Context, string, string) ([]model.Appointment, error) {
	return s.listed, nil
}

func (s *stubStore) GetUserBilling(context.Context, string) (storage.UserBilling, error) {
	return s.user, nil
}

func (s *stubStore) SetUserCustomer(_ context.Context, _ string, customerID string) error {
	if s.user.StripeCustomer == "" {
		s.user.StripeCustomer = customerID
	}
	return nil
}

func (s *stubStore) InsertPaymentEvent(_ context.Context, evt storage.PaymentEvent) error {
	if s.paymentEventErr != nil {
		return s.paymentEventErr
	}
	s.paymentEvents = append(s.paymentEvents, evt)
	return nil
}

type stubEvents struct {
	inserted []outbox.Event
	err      error
}

func (s *stubEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, evt)
	return nil
}

type fakeGateway struct {
	intent        payments.Intent
	intentErr     error
	createCalls   int
	gotAmount     int64
	gotCurrency   string
	offSession    int
	gotCustomer   string
	gotMethod     string
	setupIntent   payments.Intent
	customerID    string
	attachedTo    string
	detached      []string
	cards         []payments.Card
	refunded      []string
	ensuredEmails []string
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, currency string) (payments.Intent, error) {
	g.createCalls++
	g.gotAmount = amount
	g.gotCurrency = currency
	return g.intent, g.intentErr
}

func (g *fakeGateway) ConfirmOffSession(_ context.Context, amount int64, currency, customerID, paymentMethodID string) (payments.Intent, error) {
	g.offSession++
	g.gotAmount = amount
	g.gotCurrency = currency
	g.gotCustomer = customerID
	g.gotMethod = paymentMethodID
	return g.intent, g.intentErr
}

func (g *fakeGateway) EnsureCustomer(_ context.Context, _, email, _ string) (string, error) {
	g.ensuredEmails = append(g.ensuredEmails, email)
	return g.customerID, nil
}

func (g *fakeGateway) CreateSetupIntent(_ context.Context, customerID string) (payments.Intent, error) {
	g.attachedTo = customerID
	return g.setupIntent, nil
}

func (g *fakeGateway) AttachPaymentMethod(_ context.Context, customerID, _ string) error {
	g.attachedTo = customerID
	return nil
}

func (g *fakeGateway) DetachPaymentMethod(_ context.Context, paymentMethodID string) error {
	g.detached = append(g.detached, paymentMethodID)
	return nil
}

func (g *fakeGateway) ListPaymentMethods(context.Context, string) ([]payments.Card, error) {
	return g.cards, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentIntentID string) error {
	g.refunded = append(g.refunded, paymentIntentID)
	return nil
}

func testDoctor() storage.DoctorInfo {
	return storage.DoctorInfo{
		ID:        "doc-1",
		Fullname:  "Dr. Salma Hassan",
		Specialty: "Cardiology",
		Price:     50,
		AvailableSlots: []byte(`[
			{"day":"2025-06-10","slots":["09:00","10:30"]},
			{"day":"2025-06-11","slots":["14:00"]}
		]`),
	}
}

func newTestHandler(store *stubStore, events *stubEvents, gateway *fakeGateway) *Handler {
	return New(store, events, gateway, slog.New(slog.DiscardHandler))
}

func doRequest(h http.HandlerFunc, method, path, body string, signedIn bool) *httptest.ResponseRecorder {
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if signedIn {
		req.Header.Set("X-User-Id", "user-1")
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode message body: %v", err)
	}
	return out.Message
}

func TestBookIntentRequiresSignIn(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubEvents{}, &fakeGateway{})
	rec := doRequest(h.BookIntent, http.MethodPost, "/booking/book-intent/doc-1", `{"options":{"amount":5000,"currency":"egp"}}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBookIntentRejectsAmountMismatch(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	gateway := &fakeGateway{}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.BookIntent, http.MethodPost, "/booking/book-intent/doc-1",
		`{"options":{"amount":100,"currency":"egp"}}`, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if gateway.createCalls != 0 || gateway.offSession != 0 {
		t.Fatal("gateway must not be called on amount mismatch")
	}
}

func TestBookIntentNewCard(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	gateway := &fakeGateway{intent: payments.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_x", Status: "requires_payment_method"}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.BookIntent, http.MethodPost, "/booking/book-intent/doc-1",
		`{"options":{"amount":5000,"currency":"egp","automatic_payment_methods":{"enabled":true}}}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gateway.createCalls != 1 || gateway.offSession != 0 {
		t.Fatalf("expected one on-session intent, got create=%d offSession=%d", gateway.createCalls, gateway.offSession)
	}
	if gateway.gotAmount != 5000 || gateway.gotCurrency != "egp" {
		t.Fatalf("unexpected intent params: amount=%d currency=%q", gateway.gotAmount, gateway.gotCurrency)
	}

	var out struct {
		PaymentIntent struct {
			ID           string `json:"id"`
			ClientSecret string `json:"client_secret"`
			Status       string `json:"status"`
		} `json:"paymentIntent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.PaymentIntent.ID != "pi_1" || out.PaymentIntent.ClientSecret != "pi_1_secret_x" {
		t.Fatalf("unexpected payment intent: %+v", out.PaymentIntent)
	}
}

func TestBookIntentStoredCardUsesOffSession(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	gateway := &fakeGateway{intent: payments.Intent{ID: "pi_2", Status: "succeeded"}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.BookIntent, http.MethodPost, "/booking/book-intent/doc-1",
		`{"options":{"amount":5000,"currency":"egp","customer":"cus_9","payment_method":"pm_4","off_session":true,"confirm":true}}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gateway.offSession != 1 || gateway.createCalls != 0 {
		t.Fatalf("expected off-session confirm, got create=%d offSession=%d", gateway.createCalls, gateway.offSession)
	}
	if gateway.gotCustomer != "cus_9" || gateway.gotMethod != "pm_4" {
		t.Fatalf("unexpected off-session params: customer=%q method=%q", gateway.gotCustomer, gateway.gotMethod)
	}
}

func TestBookIntentDeclinePropagatesMessage(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	gateway := &fakeGateway{intentErr: &payments.DeclinedError{Message: "Your card was declined."}}
	h := newTestHandler(store, &stubEvents{}, gateway)

	rec := doRequest(h.BookIntent, http.MethodPost, "/booking/book-intent/doc-1",
		`{"options":{"amount":5000,"currency":"egp","customer":"cus_9","payment_method":"pm_4"}}`, true)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Your card was declined." {
		t.Fatalf("expected processor message verbatim, got %q", msg)
	}
}

func TestBookDoctorSuccess(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	events := &stubEvents{}
	h := newTestHandler(store, events, &fakeGateway{})

	rec := doRequest(h.BookDoctor, http.MethodPost, "/booking/book-doctor/doc-1",
		`{"day":"2025-06-10","slot":"09:00","paymentIntent":"pi_777"}`, true)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one appointment, got %d", len(store.created))
	}
	appt := store.created[0]
	if appt.Day != "2025-06-10" || appt.Slot != "09:00" || appt.PaymentIntent != "pi_777" {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if appt.Price != 50 {
		t.Fatalf("expected server-side price 50, got %v", appt.Price)
	}
	if len(events.inserted) != 1 || events.inserted[0].EventType != outbox.EventAppointmentBooked {
		t.Fatalf("expected one booked event, got %+v", events.inserted)
	}
	if !store.tx.committed {
		t.Fatal("expected transaction commit")
	}

	var out struct {
		Appointment appointmentResponse `json:"appointment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Appointment.ID != "appt-1" || out.Appointment.DoctorName != "Dr. Salma Hassan" {
		t.Fatalf("unexpected response: %+v", out.Appointment)
	}
}

func TestBookDoctorRejectsUnknownSlot(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	h := newTestHandler(store, &stubEvents{}, &fakeGateway{})

	rec := doRequest(h.BookDoctor, http.MethodPost, "/booking/book-doctor/doc-1",
		`{"day":"2025-06-10","slot":"23:00","paymentIntent":"pi_777"}`, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Selected slot is not available." {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(store.created) != 0 {
		t.Fatal("no appointment should be created for an unknown slot")
	}
}

func TestBookDoctorSlotConflictIs409(t *testing.T) {
	store := &stubStore{
		doctor:    testDoctor(),
		createErr: &pgconn.PgError{Code: "23505"},
	}
	h := newTestHandler(store, &stubEvents{}, &fakeGateway{})

	rec := doRequest(h.BookDoctor, http.MethodPost, "/booking/book-doctor/doc-1",
		`{"day":"2025-06-10","slot":"09:00","paymentIntent":"pi_777"}`, true)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestBookDoctorAcceptsRepeatedPaymentReference(t *testing.T) {
	store := &stubStore{doctor: testDoctor()}
	h := newTestHandler(store, &stubEvents{}, &fakeGateway{})

	for _, slot := range []string{"09:00", "10:30"} {
		rec := doRequest(h.BookDoctor, http.MethodPost, "/booking/book-doctor/doc-1",
			`{"day":"2025-06-10","slot":"`+slot+`","paymentIntent":"pi_reused"}`, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 for slot %s, got %d", slot, rec.Code)
		}
	}
	if len(store.created) != 2 {
		t.Fatalf("expected two appointments with the same payment reference, got %d", len(store.created))
	}
}

func TestUpdateBookingReschedules(t *testing.T) {
	store := &stubStore{
		doctor: testDoctor(),
		appt: model.Appointment{
			ID: "appt-1", UserID: "user-1", DoctorID: "doc-1",
			Day: "2025-06-10", Slot: "09:00", Status: model.StatusUpcoming,
		},
	}
	events := &stubEvents{}
	h := newTestHandler(store, events, &fakeGateway{})

	rec := doRequest(h.UpdateBooking, http.MethodPut, "/booking/update-booking/appt-1",
		`{"day":"2025-06-11","slot":"14:00"}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(events.inserted) != 1 || events.inserted[0].EventType != outbox.EventAppointmentUpdated {
		t.Fatalf("expected one updated event, got %+v", events.inserted)
	}

	var payload map[string]any
	if err := json.Unmarshal(events.inserted[0].Payload, &payload); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	prev, ok := payload["previous"].(map[string]any)
	if !ok || prev["day"] != "2025-06-10" || prev["slot"] != "09:00" {
		t.Fatalf("expected previous schedule in event, got %v", payload["previous"])
	}
}

func TestUpdateBookingRejectsCancelled(t *testing.T) {
	store := &stubStore{
		doctor: testDoctor(),
		appt:   model.Appointment{ID: "appt-1", DoctorID: "doc-1", Status: model.StatusCancelled},
	}
	h := newTestHandler(store, &stubEvents{}, &fakeGateway{})

	rec := doRequest(h.UpdateBooking, http.MethodPut, "/booking/update-booking/appt-1",
		`{"day":"2025-06-11","slot":"14:00"}`, true)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCancelBookingEmitsEvent(t *testing.T) {
	store := &stubStore{
		doctor: testDoctor(),
		appt: model.Appointment{
			ID: "appt-1", UserID: "user-1", DoctorID: "doc-1",
			Day: "2025-06-10", Slot: "09:00", Status: model.StatusUpcoming,
		},
	}
	events := &stubEvents{}
	h := newTestHandler(store, events, &fakeGateway{})

	rec := doRequest(h.CancelBooking, http.MethodDelete, "/booking/cancel-doctor/appt-1", "", true)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(events.inserted) != 1 || events.inserted[0].EventType != outbox.EventAppointmentCancelled {
		t.Fatalf("expected one cancelled event, got %+v", events.inserted)
	}
}

func TestMyBookingsRejectsUnknownFilter(t *testing.T) {
	h := newTestHandler(&stubStore{}, &stubEvents{}, &fakeGateway{})
	rec := doRequest(h.MyBookings, http.MethodGet, "/booking/my-bookings?filter=bogus", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMyBookings(t *testing.T) {
	store := &stubStore{listed: []model.Appointment{
		{ID: "appt-1", DoctorName: "Dr. Salma Hassan", Day: "2025-06-10", Slot: "09:00", Status: model.StatusUpcoming},
	}}
	h := newTestHandler(store, &stubEvents{}, &fakeGateway{})

	rec := doRequest(h.MyBookings, http.MethodGet, "/booking/my-bookings?filter=upcoming", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out struct {
		Appointments []appointmentResponse `json:"appointments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Appointments) != 1 || out.Appointments[0].ID != "appt-1" {
		t.Fatalf("unexpected list: %+v", out.Appointments)
	}
}
