// Package payments drives payment confirmation against Stripe for the
// new-card booking path.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/setupintent"
)

// RedirectRequiredError means the payment needs browser interaction
// (3-D Secure and friends). Callers send the patient to URL and poll
// the intent afterwards.
type RedirectRequiredError struct {
	URL string
}

func (e *RedirectRequiredError) Error() string {
	return "payment requires further action"
}

// Confirmer completes payment and setup intents created by the
// backend. ReturnURL is where redirect-based methods land afterwards.
type Confirmer struct {
	ReturnURL string
}

// ConfirmPayment attaches the payment method and confirms the intent.
// Processor declines surface their user-facing message verbatim and
// are never retried.
func (c *Confirmer) ConfirmPayment(ctx context.Context, clientSecret, paymentMethodID string) (string, error) {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return "", err
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	if c.ReturnURL != "" {
		params.ReturnURL = stripe.String(c.ReturnURL)
	}
	params.Context = ctx

	pi, err := paymentintent.Confirm(intentID, params)
	if err != nil {
		return "", declineMessage(err)
	}

	if pi.Status == stripe.PaymentIntentStatusRequiresAction &&
		pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		return "", &RedirectRequiredError{URL: pi.NextAction.RedirectToURL.URL}
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded && pi.Status != stripe.PaymentIntentStatusProcessing {
		return "", fmt.Errorf("payment not completed (status %s)", pi.Status)
	}
	return pi.ID, nil
}

// ConfirmSetup completes a setup intent for saving a card.
func (c *Confirmer) ConfirmSetup(ctx context.Context, clientSecret, paymentMethodID string) (string, error) {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return "", err
	}

	params := &stripe.SetupIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	if c.ReturnURL != "" {
		params.ReturnURL = stripe.String(c.ReturnURL)
	}
	params.Context = ctx

	si, err := setupintent.Confirm(intentID, params)
	if err != nil {
		return "", declineMessage(err)
	}
	if si.PaymentMethod == nil {
		return "", errors.New("setup intent confirmed without a payment method")
	}
	return si.PaymentMethod.ID, nil
}

// declineMessage unwraps Stripe's user-facing message so the patient
// sees exactly what the processor said.
func declineMessage(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Msg != "" {
		return errors.New(sErr.Msg)
	}
	return err
}

func intentIDFromClientSecret(clientSecret string) (string, error) {
	id, _, found := strings.Cut(clientSecret, "_secret")
	if !found || id == "" {
		return "", fmt.Errorf("malformed client secret")
	}
	return id, nil
}
