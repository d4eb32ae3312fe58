package jobs

import (
	"time"
)

// RemindTime computes when to nudge the patient: the appointment's
// start minus the lead, clamped to now for near-term bookings so the
// reminder still goes out.
func RemindTime(day, slot string, lead time.Duration, now time.Time) (time.Time, error) {
	start, err := time.Parse("2006-01-02 15:04", day+" "+slot)
	if err != nil {
		return time.Time{}, err
	}
	at := start.Add(-lead)
	if at.Before(now) {
		at = now
	}
	return at.UTC(), nil
}
