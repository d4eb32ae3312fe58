package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// DoctorInfo is what the booking flow needs to know about a doctor.
type DoctorInfo struct {
	ID             string
	Fullname       string
	Specialty      string
	Price          float64
	AvailableSlots []byte // jsonb calendar, parsed by availability.Parse
}

func (r *BookingRepository) GetDoctor(ctx context.Context, doctorID string) (DoctorInfo, error) {
	var d DoctorInfo
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, fullname, specialty, price, COALESCE(available_slots, '[]'::jsonb)
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&d.ID, &d.Fullname, &d.Specialty, &d.Price, &d.AvailableSlots)
	if err != nil {
		return DoctorInfo{}, err
	}
	return d, nil
}

// Create inserts an upcoming appointment. A partial unique index on
// (doctor_id, day, slot) for upcoming rows turns double bookings into
// unique violations the handler maps to 409.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments (id, user_id, doctor_id, day, slot, status, price, payment_intent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, appt.UserID, appt.DoctorID, appt.Day, appt.Slot, model.StatusUpcoming, appt.Price, appt.PaymentIntent)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID, userID string) (model.Appointment, error) {
	var appt model.Appointment
	err := tx.QueryRow(ctx, `
		SELECT a.id::text, a.user_id::text, a.doctor_id::text, d.fullname, d.specialty,
		       a.day, a.slot, a.status, a.price, COALESCE(a.payment_intent, ''),
		       a.created_at, a.cancelled_at
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.id = $1 AND a.user_id = $2
		FOR UPDATE OF a
	`, appointmentID, userID).Scan(
		&appt.ID, &appt.UserID, &appt.DoctorID, &appt.DoctorName, &appt.Specialty,
		&appt.Day, &appt.Slot, &appt.Status, &appt.Price, &appt.PaymentIntent,
		&appt.CreatedAt, &appt.CancelledAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *BookingRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, appointmentID, day, slot string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET day = $2, slot = $3
		WHERE id = $1
	`, appointmentID, day, slot)
	return err
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, appointmentID string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, cancelled_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, model.StatusCancelled).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID, statusFilter string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id::text, a.user_id::text, a.doctor_id::text, d.fullname, d.specialty,
		       a.day, a.slot, a.status, a.price, COALESCE(a.payment_intent, ''),
		       a.created_at, a.cancelled_at
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.user_id = $1
		  AND ($2 = '' OR a.status = $2)
		ORDER BY a.day, a.slot
	`, userID, statusFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID, &appt.UserID, &appt.DoctorID, &appt.DoctorName, &appt.Specialty,
			&appt.Day, &appt.Slot, &appt.Status, &appt.Price, &appt.PaymentIntent,
			&appt.CreatedAt, &appt.CancelledAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}
