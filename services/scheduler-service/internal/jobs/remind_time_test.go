package jobs

import (
	"testing"
	"time"
)

func TestRemindTimeSubtractsLead(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at, err := RemindTime("2025-06-10", "09:00", 24*time.Hour, now)
	if err != nil {
		t.Fatalf("RemindTime: %v", err)
	}
	want := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("expected %v, got %v", want, at)
	}
}

func TestRemindTimeClampsToNow(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	at, err := RemindTime("2025-06-10", "09:00", 24*time.Hour, now)
	if err != nil {
		t.Fatalf("RemindTime: %v", err)
	}
	if !at.Equal(now) {
		t.Fatalf("expected clamp to now, got %v", at)
	}
}

func TestRemindTimeRejectsBadSlot(t *testing.T) {
	if _, err := RemindTime("2025-06-10", "9am", time.Hour, time.Now()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestJobKeyStableAcrossReplays(t *testing.T) {
	at := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	a := Job{AppointmentID: "appt-1", RemindAt: at}
	b := Job{AppointmentID: "appt-1", RemindAt: at.In(time.FixedZone("EET", 2*3600))}
	if a.Key() != b.Key() {
		t.Fatalf("expected identical keys, got %q and %q", a.Key(), b.Key())
	}
}
