package booking

import (
	"errors"
	"time"
)

// Phase tracks where the booking form is in its lifecycle.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseDateChosen
	PhaseDateTimeChosen
	PhaseSubmitting
)

var (
	ErrDateUnavailable = errors.New("selected date has no available slots")
	ErrTimeUnavailable = errors.New("selected time is not offered on this date")
	ErrNoDateChosen    = errors.New("choose a date first")
	ErrNotSubmittable  = errors.New("form is not ready to submit")
)

// Form is the booking form state machine. Picking a date whose slot
// set does not include the currently chosen time clears the time.
type Form struct {
	catalog *SlotCatalog

	date    time.Time
	hasDate bool
	slot    string
	phase   Phase
}

func NewForm(catalog *SlotCatalog) *Form {
	return &Form{catalog: catalog}
}

func (f *Form) Phase() Phase { return f.phase }

func (f *Form) Date() (time.Time, bool) { return f.date, f.hasDate }

func (f *Form) TimeSlot() string { return f.slot }

// Day renders the chosen date in wire format, empty when unset.
func (f *Form) Day() string {
	if !f.hasDate {
		return ""
	}
	return f.date.Format(DayFormat)
}

func (f *Form) SelectDate(date time.Time) error {
	if f.phase == PhaseSubmitting {
		return ErrNotSubmittable
	}
	if !f.catalog.Selectable(date) {
		return ErrDateUnavailable
	}
	f.date = date
	f.hasDate = true
	if f.slot != "" && !f.catalog.HasTime(date, f.slot) {
		f.slot = ""
	}
	if f.slot != "" {
		f.phase = PhaseDateTimeChosen
	} else {
		f.phase = PhaseDateChosen
	}
	return nil
}

func (f *Form) SelectTime(slot string) error {
	if f.phase == PhaseSubmitting {
		return ErrNotSubmittable
	}
	if !f.hasDate {
		return ErrNoDateChosen
	}
	if !f.catalog.HasTime(f.date, slot) {
		return ErrTimeUnavailable
	}
	f.slot = slot
	f.phase = PhaseDateTimeChosen
	return nil
}

func (f *Form) CanSubmit() bool {
	return f.hasDate && f.slot != "" && f.phase == PhaseDateTimeChosen
}

// Validate reports per-field requirements the way the booking page
// renders them under the inputs.
func (f *Form) Validate() map[string]string {
	problems := map[string]string{}
	if !f.hasDate {
		problems["date"] = "Required"
	}
	if f.slot == "" {
		problems["time"] = "Required"
	}
	return problems
}

func (f *Form) BeginSubmit() error {
	if !f.CanSubmit() {
		return ErrNotSubmittable
	}
	f.phase = PhaseSubmitting
	return nil
}

// MarkSucceeded resets the form for a fresh booking.
func (f *Form) MarkSucceeded() {
	f.date = time.Time{}
	f.hasDate = false
	f.slot = ""
	f.phase = PhaseEmpty
}

// MarkFailed returns the form to its pre-submit state so the patient
// can retry with the same selection.
func (f *Form) MarkFailed() {
	f.phase = PhaseDateTimeChosen
}

// ScheduleLabel renders the confirmation line, e.g.
// "Tuesday, June 10 - 09:00". Empty until date and time are chosen.
func (f *Form) ScheduleLabel() string {
	if !f.hasDate || f.slot == "" {
		return ""
	}
	return f.date.Format("Monday, January 02") + " - " + f.slot
}

// ScheduleDate renders just the date part of the label.
func (f *Form) ScheduleDate() string {
	if !f.hasDate {
		return ""
	}
	return f.date.Format("Monday, January 02")
}
