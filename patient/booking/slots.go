package booking

import (
	"time"

	"github.com/careslot/careslot/patient/api"
)

// DayFormat is the wire format for calendar days.
const DayFormat = "2006-01-02"

// SlotCatalog answers which days a doctor can be booked and which
// times each day offers, straight from the doctor's available_slots.
type SlotCatalog struct {
	days []api.DaySlots
}

func NewSlotCatalog(days []api.DaySlots) *SlotCatalog {
	return &SlotCatalog{days: days}
}

// Selectable reports whether any availability entry covers the date.
// An empty catalog admits no date at all.
func (c *SlotCatalog) Selectable(date time.Time) bool {
	day := date.Format(DayFormat)
	for _, d := range c.days {
		if d.Day == day {
			return true
		}
	}
	return false
}

// TimesFor returns the date's times in backend order. A date with no
// entry yields nil rather than an error, so a selection that went
// stale degrades to an empty time list. Should the backend ever send
// the same day twice, the first entry wins.
func (c *SlotCatalog) TimesFor(date time.Time) []string {
	day := date.Format(DayFormat)
	for _, d := range c.days {
		if d.Day == day {
			return d.Slots
		}
	}
	return nil
}

// HasTime reports whether slot is offered on the date.
func (c *SlotCatalog) HasTime(date time.Time, slot string) bool {
	for _, s := range c.TimesFor(date) {
		if s == slot {
			return true
		}
	}
	return false
}
