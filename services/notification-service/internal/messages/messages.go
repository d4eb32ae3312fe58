// Package messages renders the user-facing copy for booking events.
package messages

import (
	"fmt"
	"time"

	"github.com/careslot/careslot/services/notification-service/internal/storage"
)

type BookingEvent struct {
	AppointmentID string  `json:"appointment_id"`
	UserID        string  `json:"user_id"`
	DoctorID      string  `json:"doctor_id"`
	DoctorName    string  `json:"doctor_name"`
	Day           string  `json:"day"`
	Slot          string  `json:"slot"`
	Price         float64 `json:"price"`
	OccurredAt    string  `json:"occurred_at"`
	Previous      *struct {
		Day  string `json:"day"`
		Slot string `json:"slot"`
	} `json:"previous,omitempty"`
}

// ScheduleLabel renders "Tuesday, June 10 - 09:00" from a yyyy-MM-dd
// day and a slot time. Unparseable days fall back to the raw value.
func ScheduleLabel(day, slot string) string {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day + " - " + slot
	}
	return d.Format("Monday, January 02") + " - " + slot
}

func ForEvent(eventType string, evt BookingEvent) (storage.Notification, bool) {
	schedule := ScheduleLabel(evt.Day, evt.Slot)
	switch eventType {
	case "booking.appointment.booked.v1":
		return storage.Notification{
			UserID:  evt.UserID,
			Title:   "Appointment confirmed",
			Message: fmt.Sprintf("Your appointment with %s on %s is confirmed.", evt.DoctorName, schedule),
			Type:    storage.TypeBookingConfirmed,
		}, true
	case "booking.appointment.updated.v1":
		return storage.Notification{
			UserID:  evt.UserID,
			Title:   "Appointment rescheduled",
			Message: fmt.Sprintf("Your appointment with %s was moved to %s.", evt.DoctorName, schedule),
			Type:    storage.TypeBookingRescheduled,
		}, true
	case "booking.appointment.cancelled.v1":
		return storage.Notification{
			UserID:  evt.UserID,
			Title:   "Appointment cancelled",
			Message: fmt.Sprintf("Your appointment with %s on %s was cancelled.", evt.DoctorName, schedule),
			Type:    storage.TypeBookingCancelled,
		}, true
	case "booking.appointment.reminder.v1":
		return storage.Notification{
			UserID:  evt.UserID,
			Title:   "Appointment reminder",
			Message: fmt.Sprintf("Reminder: your appointment with %s is on %s.", evt.DoctorName, schedule),
			Type:    storage.TypeBookingReminder,
		}, true
	}
	return storage.Notification{}, false
}
