package booking

import (
	"context"
	"errors"
	"math"

	"github.com/careslot/careslot/patient/api"
)

// Currency is the only currency the product charges in.
const Currency = "egp"

// ErrNoPaymentMethod is shown when the patient submits without picking
// a stored card or entering a new one.
var ErrNoPaymentMethod = errors.New("Please select payment method or add new one.")

// MinorUnits converts a doctor's fee to the processor's minor units.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// IntentCreator provisions payment intents for a booking.
type IntentCreator interface {
	CreateBookingIntent(ctx context.Context, doctorID string, opts api.IntentOptions) (*api.PaymentIntent, error)
}

// Confirmer completes a payment intent with a payment method. Used on
// the new-card path; stored cards confirm off-session on the backend.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret, paymentMethodID string) (intentID string, err error)
}

// Persister writes bookings through the backend.
type Persister interface {
	CreateAppointment(ctx context.Context, doctorID string, req api.AppointmentRequest) (*api.Appointment, error)
	UpdateAppointment(ctx context.Context, appointmentID, day, slot string) error
}

// Workflow sequences payment and persistence for one booking attempt.
type Workflow struct {
	Intents   IntentCreator
	Confirmer Confirmer
	Persister Persister
	Notifier  Notifier
}

// SubmitParams carries everything outside the form the submit needs.
type SubmitParams struct {
	DoctorID   string
	DoctorName string
	Price      float64

	// PaymentMethodID is the chosen card, stored or freshly entered.
	PaymentMethodID string
	// CustomerID plus UseStoredCard selects the off-session branch.
	CustomerID    string
	UseStoredCard bool
}

// Submit runs the booking pipeline: intent, confirmation, persistence,
// notification. On any failure the form returns to its pre-submit
// state, the failure is reported verbatim, and nothing is retried.
// A payment that succeeded before a failed persistence is not
// compensated here; the backend reconciles such intents.
func (wf *Workflow) Submit(ctx context.Context, form *Form, p SubmitParams) (*api.Appointment, error) {
	if err := form.BeginSubmit(); err != nil {
		return nil, err
	}
	if p.PaymentMethodID == "" {
		return nil, wf.fail(ctx, form, ErrNoPaymentMethod)
	}

	amount := MinorUnits(p.Price)

	var paymentRef string
	if p.UseStoredCard {
		intent, err := wf.Intents.CreateBookingIntent(ctx, p.DoctorID, api.IntentOptions{
			Amount:        amount,
			Currency:      Currency,
			Customer:      p.CustomerID,
			PaymentMethod: p.PaymentMethodID,
			OffSession:    true,
			Confirm:       true,
		})
		if err != nil {
			return nil, wf.fail(ctx, form, err)
		}
		paymentRef = intent.ID
	} else {
		intent, err := wf.Intents.CreateBookingIntent(ctx, p.DoctorID, api.IntentOptions{
			Amount:                  amount,
			Currency:                Currency,
			AutomaticPaymentMethods: &api.AutomaticPaymentMethods{Enabled: true},
		})
		if err != nil {
			return nil, wf.fail(ctx, form, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, wf.fail(ctx, form, err)
		}
		id, err := wf.Confirmer.ConfirmPayment(ctx, intent.ClientSecret, p.PaymentMethodID)
		if err != nil {
			return nil, wf.fail(ctx, form, err)
		}
		paymentRef = id
	}

	if err := ctx.Err(); err != nil {
		return nil, wf.fail(ctx, form, err)
	}

	date := form.ScheduleDate()
	slot := form.TimeSlot()
	appt, err := wf.Persister.CreateAppointment(ctx, p.DoctorID, api.AppointmentRequest{
		Day:           form.Day(),
		Slot:          slot,
		PaymentIntent: paymentRef,
	})
	if err != nil {
		return nil, wf.fail(ctx, form, err)
	}

	form.MarkSucceeded()
	wf.Notifier.BookingSucceeded(ctx, Outcome{
		DoctorName: p.DoctorName,
		Date:       date,
		Time:       slot,
	})
	return appt, nil
}

// Reschedule moves an existing booking to the form's selection. No
// payment is involved.
func (wf *Workflow) Reschedule(ctx context.Context, form *Form, appointmentID string) error {
	if err := form.BeginSubmit(); err != nil {
		return err
	}
	if err := wf.Persister.UpdateAppointment(ctx, appointmentID, form.Day(), form.TimeSlot()); err != nil {
		return wf.fail(ctx, form, err)
	}
	form.MarkSucceeded()
	return nil
}

func (wf *Workflow) fail(ctx context.Context, form *Form, err error) error {
	form.MarkFailed()
	wf.Notifier.BookingFailed(ctx, err.Error())
	return err
}
