package messages

import (
	"testing"

	"github.com/careslot/careslot/services/notification-service/internal/storage"
)

func TestScheduleLabel(t *testing.T) {
	got := ScheduleLabel("2025-06-10", "09:00")
	if got != "Tuesday, June 10 - 09:00" {
		t.Fatalf("expected %q, got %q", "Tuesday, June 10 - 09:00", got)
	}
}

func TestScheduleLabelFallsBackOnBadDay(t *testing.T) {
	got := ScheduleLabel("not-a-date", "09:00")
	if got != "not-a-date - 09:00" {
		t.Fatalf("unexpected fallback label %q", got)
	}
}

func TestForEvent(t *testing.T) {
	evt := BookingEvent{
		UserID:     "user-1",
		DoctorName: "Dr. Salma Hassan",
		Day:        "2025-06-10",
		Slot:       "09:00",
	}

	n, ok := ForEvent("booking.appointment.booked.v1", evt)
	if !ok {
		t.Fatal("expected booked event to map")
	}
	if n.Type != storage.TypeBookingConfirmed || n.UserID != "user-1" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.Message != "Your appointment with Dr. Salma Hassan on Tuesday, June 10 - 09:00 is confirmed." {
		t.Fatalf("unexpected message %q", n.Message)
	}

	if _, ok := ForEvent("billing.invoice.paid.v1", evt); ok {
		t.Fatal("unknown event types must not map")
	}
}
