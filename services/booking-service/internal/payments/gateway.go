// Package payments wraps the Stripe API behind the narrow surface the
// booking handlers use. Keeping the SDK here keeps handlers testable.
package payments

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/paymentmethod"
	"github.com/stripe/stripe-go/v79/refund"
	"github.com/stripe/stripe-go/v79/setupintent"
)

// Intent is the subset of a payment intent the API returns to clients.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type Card struct {
	ID       string
	Brand    string
	ExpMonth int64
	ExpYear  int64
	Last4    string
}

// DeclinedError carries the processor's user-facing message so it can
// be shown to the patient verbatim.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string { return e.Message }

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (Intent, error)
	ConfirmOffSession(ctx context.Context, amount int64, currency, customerID, paymentMethodID string) (Intent, error)
	EnsureCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateSetupIntent(ctx context.Context, customerID string) (Intent, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	ListPaymentMethods(ctx context.Context, customerID string) ([]Card, error)
	Refund(ctx context.Context, paymentIntentID string) error
}

type StripeGateway struct{}

// NewStripeGateway sets the package-level API key, matching how the
// stripe-go SDK is meant to be initialized once per process.
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, wrapStripeErr(err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) ConfirmOffSession(ctx context.Context, amount int64, currency, customerID, paymentMethodID string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, wrapStripeErr(err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, userID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	c, err := customer.New(params)
	if err != nil {
		return "", wrapStripeErr(err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerID string) (Intent, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	si, err := setupintent.New(params)
	if err != nil {
		return Intent{}, wrapStripeErr(err)
	}
	return Intent{ID: si.ID, ClientSecret: si.ClientSecret, Status: string(si.Status)}, nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	_, err := paymentmethod.Attach(paymentMethodID, params)
	return wrapStripeErr(err)
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	_, err := paymentmethod.Detach(paymentMethodID, params)
	return wrapStripeErr(err)
}

func (g *StripeGateway) ListPaymentMethods(ctx context.Context, customerID string) ([]Card, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	var cards []Card
	iter := paymentmethod.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		if pm.Card == nil {
			continue
		}
		cards = append(cards, Card{
			ID:       pm.ID,
			Brand:    string(pm.Card.Brand),
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
			Last4:    pm.Card.Last4,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeErr(err)
	}
	return cards, nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	_, err := refund.New(params)
	return wrapStripeErr(err)
}

func toIntent(pi *stripe.PaymentIntent) Intent {
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}
}

// wrapStripeErr converts SDK errors carrying a user-facing message
// into DeclinedError; everything else passes through untouched.
func wrapStripeErr(err error) error {
	if err == nil {
		return nil
	}
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Msg != "" {
		return &DeclinedError{Message: sErr.Msg}
	}
	return err
}
