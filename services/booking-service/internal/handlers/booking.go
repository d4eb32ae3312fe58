package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/services/booking-service/internal/availability"
	"github.com/careslot/careslot/services/booking-service/internal/model"
	"github.com/careslot/careslot/services/booking-service/internal/outbox"
	"github.com/careslot/careslot/services/booking-service/internal/payments"
	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

const currency = "egp"

// BookingStore is the storage surface the handlers depend on. The pgx
// repository implements it; tests substitute a stub.
type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetDoctor(ctx context.Context, doctorID string) (storage.DoctorInfo, error)
	Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID, userID string) (model.Appointment, error)
	UpdateSchedule(ctx context.Context, tx pgx.Tx, appointmentID, day, slot string) error
	Cancel(ctx context.Context, tx pgx.Tx, appointmentID string) (time.Time, error)
	ListByUser(ctx context.Context, userID, statusFilter string) ([]model.Appointment, error)
	GetUserBilling(ctx context.Context, userID string) (storage.UserBilling, error)
	SetUserCustomer(ctx context.Context, userID, customerID string) error
}

// EventWriter appends a domain event inside the caller's transaction.
type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Handler struct {
	store   BookingStore
	events  EventWriter
	gateway payments.Gateway
	logger  *slog.Logger
}

func New(store BookingStore, events EventWriter, gateway payments.Gateway, logger *slog.Logger) *Handler {
	return &Handler{store: store, events: events, gateway: gateway, logger: logger}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

type intentOptions struct {
	Amount                  int64           `json:"amount"`
	Currency                string          `json:"currency"`
	AutomaticPaymentMethods json.RawMessage `json:"automatic_payment_methods"`
	Customer                string          `json:"customer"`
	PaymentMethod           string          `json:"payment_method"`
	OffSession              bool            `json:"off_session"`
	Confirm                 bool            `json:"confirm"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type appointmentResponse struct {
	ID            string  `json:"id"`
	DoctorID      string  `json:"doctor_id"`
	DoctorName    string  `json:"doctor_name"`
	Specialty     string  `json:"specialty"`
	Day           string  `json:"day"`
	Slot          string  `json:"slot"`
	Status        string  `json:"status"`
	Price         float64 `json:"price"`
	PaymentIntent string  `json:"payment_intent"`
}

func toAppointmentResponse(appt model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:            appt.ID,
		DoctorID:      appt.DoctorID,
		DoctorName:    appt.DoctorName,
		Specialty:     appt.Specialty,
		Day:           appt.Day,
		Slot:          appt.Slot,
		Status:        appt.Status,
		Price:         appt.Price,
		PaymentIntent: appt.PaymentIntent,
	}
}

// BookIntent provisions the payment intent for a booking. The amount
// is recomputed from the doctor's fee server-side; a client cannot
// book at a price of its choosing.
func (h *Handler) BookIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	doctorID := strings.TrimPrefix(r.URL.Path, "/booking/book-intent/")
	if doctorID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "doctor id required")
		return
	}

	var req struct {
		Options intentOptions `json:"options"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	doctor, err := h.store.GetDoctor(r.Context(), doctorID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "Doctor not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}

	expected := int64(math.Round(doctor.Price * 100))
	if req.Options.Amount != expected {
		httpx.WriteMessage(w, http.StatusBadRequest, "Payment amount does not match the doctor's fee.")
		return
	}
	if req.Options.Currency != currency {
		httpx.WriteMessage(w, http.StatusBadRequest, "Unsupported currency.")
		return
	}

	var intent payments.Intent
	if req.Options.Customer != "" && req.Options.PaymentMethod != "" {
		intent, err = h.gateway.ConfirmOffSession(r.Context(), expected, currency, req.Options.Customer, req.Options.PaymentMethod)
	} else {
		intent, err = h.gateway.CreateIntent(r.Context(), expected, currency)
	}
	if err != nil {
		var declined *payments.DeclinedError
		if errors.As(err, &declined) {
			httpx.WriteMessage(w, http.StatusPaymentRequired, declined.Message)
			return
		}
		h.logger.Error("payment intent creation failed", "err", err, "doctor_id", doctorID)
		httpx.WriteMessage(w, http.StatusBadGateway, "Payment could not be started. Please try again.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]intentResponse{
		"paymentIntent": {ID: intent.ID, ClientSecret: intent.ClientSecret, Status: intent.Status},
	})
}

// BookDoctor persists a paid booking. The slot is validated against
// the doctor's calendar and double bookings surface as 409; repeated
// payment references are accepted as-is (the processor, not this
// service, is the authority on what a payment covers).
func (h *Handler) BookDoctor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	doctorID := strings.TrimPrefix(r.URL.Path, "/booking/book-doctor/")
	if doctorID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "doctor id required")
		return
	}

	var req struct {
		Day           string `json:"day"`
		Slot          string `json:"slot"`
		PaymentIntent string `json:"paymentIntent"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Day = strings.TrimSpace(req.Day)
	req.Slot = strings.TrimSpace(req.Slot)
	req.PaymentIntent = strings.TrimSpace(req.PaymentIntent)
	if req.Day == "" || req.Slot == "" || req.PaymentIntent == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "day, slot and paymentIntent are required")
		return
	}

	doctor, err := h.store.GetDoctor(r.Context(), doctorID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "Doctor not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}
	catalog, err := availability.Parse(doctor.AvailableSlots)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctor availability")
		return
	}
	if !catalog.Contains(req.Day, req.Slot) {
		httpx.WriteMessage(w, http.StatusBadRequest, "Selected slot is not available.")
		return
	}

	appt := model.Appointment{
		UserID:        userID,
		DoctorID:      doctorID,
		DoctorName:    doctor.Fullname,
		Specialty:     doctor.Specialty,
		Day:           req.Day,
		Slot:          req.Slot,
		Status:        model.StatusUpcoming,
		Price:         doctor.Price,
		PaymentIntent: req.PaymentIntent,
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to start transaction")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.store.Create(ctx, tx, &appt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			httpx.WriteMessage(w, http.StatusConflict, "This slot has just been booked. Please pick another time.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}
	appt.ID = id

	if err := h.insertEvent(ctx, tx, outbox.EventAppointmentBooked, appt, nil); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to enqueue booking event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to commit transaction")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]appointmentResponse{
		"appointment": toAppointmentResponse(appt),
	})
}

// UpdateBooking reschedules an appointment. No payment fields are
// accepted; the original payment keeps covering the booking.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	appointmentID := strings.TrimPrefix(r.URL.Path, "/booking/update-booking/")
	if appointmentID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "appointment id required")
		return
	}

	var req struct {
		Day  string `json:"day"`
		Slot string `json:"slot"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Day = strings.TrimSpace(req.Day)
	req.Slot = strings.TrimSpace(req.Slot)
	if req.Day == "" || req.Slot == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "day and slot are required")
		return
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to start transaction")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.store.GetForUpdate(ctx, tx, appointmentID, userID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "Appointment not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	if appt.Status != model.StatusUpcoming {
		httpx.WriteMessage(w, http.StatusConflict, "Only upcoming appointments can be rescheduled.")
		return
	}

	doctor, err := h.store.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}
	catalog, err := availability.Parse(doctor.AvailableSlots)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctor availability")
		return
	}
	if !catalog.Contains(req.Day, req.Slot) {
		httpx.WriteMessage(w, http.StatusBadRequest, "Selected slot is not available.")
		return
	}

	previous := map[string]any{"day": appt.Day, "slot": appt.Slot}
	if err := h.store.UpdateSchedule(ctx, tx, appointmentID, req.Day, req.Slot); err != nil {
		if db.IsUniqueViolation(err) {
			httpx.WriteMessage(w, http.StatusConflict, "This slot has just been booked. Please pick another time.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	appt.Day = req.Day
	appt.Slot = req.Slot

	if err := h.insertEvent(ctx, tx, outbox.EventAppointmentUpdated, appt, previous); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to enqueue booking event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to commit transaction")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]appointmentResponse{
		"appointment": toAppointmentResponse(appt),
	})
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	appointmentID := strings.TrimPrefix(r.URL.Path, "/booking/cancel-doctor/")
	if appointmentID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "appointment id required")
		return
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to start transaction")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.store.GetForUpdate(ctx, tx, appointmentID, userID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "Appointment not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	if appt.Status == model.StatusCancelled {
		httpx.WriteMessage(w, http.StatusConflict, "Appointment is already cancelled.")
		return
	}

	if _, err := h.store.Cancel(ctx, tx, appointmentID); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to cancel appointment")
		return
	}
	appt.Status = model.StatusCancelled

	if err := h.insertEvent(ctx, tx, outbox.EventAppointmentCancelled, appt, nil); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to enqueue booking event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to commit transaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	switch filter {
	case "", model.StatusUpcoming, model.StatusCompleted, model.StatusCancelled:
	default:
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid filter")
		return
	}

	appts, err := h.store.ListByUser(r.Context(), userID, filter)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		out = append(out, toAppointmentResponse(appt))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (h *Handler) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, previous map[string]any) error {
	payload := map[string]any{
		"appointment_id": appt.ID,
		"user_id":        appt.UserID,
		"doctor_id":      appt.DoctorID,
		"doctor_name":    appt.DoctorName,
		"day":            appt.Day,
		"slot":           appt.Slot,
		"price":          appt.Price,
		"occurred_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if previous != nil {
		payload["previous"] = previous
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       buf,
	})
}
