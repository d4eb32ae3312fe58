package model

import "time"

const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Appointment struct {
	ID            string
	UserID        string
	DoctorID      string
	DoctorName    string
	Specialty     string
	Day           string // yyyy-MM-dd
	Slot          string // e.g. "09:00"
	Status        string
	Price         float64
	PaymentIntent string
	CreatedAt     time.Time
	CancelledAt   *time.Time
}
