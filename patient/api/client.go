package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Error is a non-2xx backend response. Message carries the backend's
// user-facing text when the body had one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Session holds the bearer token for the signed-in patient. It is
// passed to the client explicitly; nothing is package-level.
type Session struct {
	mu    sync.RWMutex
	token string
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Clear() { s.SetToken("") }

// Client is a typed client for the booking backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	session *Session
}

func NewClient(baseURL string, session *Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		session: session,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// DoctorQuery filters the doctor search listing.
type DoctorQuery struct {
	Name      string
	Specialty string
}

func (c *Client) SearchDoctors(ctx context.Context, q DoctorQuery) ([]Doctor, error) {
	values := url.Values{}
	if q.Name != "" {
		values.Set("name", q.Name)
	}
	if q.Specialty != "" {
		values.Set("specialty", q.Specialty)
	}
	path := "/doctor/get-doctors"
	if enc := values.Encode(); enc != "" {
		path += "?" + enc
	}
	var out struct {
		Doctors []Doctor `json:"doctors"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Doctors, nil
}

func (c *Client) TopRatedDoctors(ctx context.Context) ([]Doctor, error) {
	var out struct {
		Doctors []Doctor `json:"doctors"`
	}
	if err := c.do(ctx, http.MethodGet, "/doctor/get-top-rated-doctors", nil, &out); err != nil {
		return nil, err
	}
	return out.Doctors, nil
}

func (c *Client) GetDoctor(ctx context.Context, doctorID string) (*DoctorDetails, error) {
	var out struct {
		Doctor DoctorDetails `json:"doctor"`
	}
	if err := c.do(ctx, http.MethodGet, "/doctor/get-doctor/"+url.PathEscape(doctorID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Doctor, nil
}

func (c *Client) AddReview(ctx context.Context, doctorID string, rate float64, comment string) error {
	body := map[string]any{"rate": rate, "comment": comment}
	return c.do(ctx, http.MethodPost, "/review/add-review/"+url.PathEscape(doctorID), body, nil)
}

func (c *Client) ToggleFavourite(ctx context.Context, doctorID string) error {
	return c.do(ctx, http.MethodPost, "/doctor/toggle-favourite/"+url.PathEscape(doctorID), nil, nil)
}

// CreateBookingIntent asks the backend for a payment intent covering
// the doctor's fee.
func (c *Client) CreateBookingIntent(ctx context.Context, doctorID string, opts IntentOptions) (*PaymentIntent, error) {
	body := map[string]IntentOptions{"options": opts}
	var out struct {
		PaymentIntent PaymentIntent `json:"paymentIntent"`
	}
	if err := c.do(ctx, http.MethodPost, "/booking/book-intent/"+url.PathEscape(doctorID), body, &out); err != nil {
		return nil, err
	}
	return &out.PaymentIntent, nil
}

// CreateAppointment persists a paid booking. Repeated calls with the
// same payment reference are sent as-is; the backend owns conflicts.
func (c *Client) CreateAppointment(ctx context.Context, doctorID string, req AppointmentRequest) (*Appointment, error) {
	var out struct {
		Appointment Appointment `json:"appointment"`
	}
	if err := c.do(ctx, http.MethodPost, "/booking/book-doctor/"+url.PathEscape(doctorID), req, &out); err != nil {
		return nil, err
	}
	return &out.Appointment, nil
}

// UpdateAppointment reschedules an existing booking. No payment fields.
func (c *Client) UpdateAppointment(ctx context.Context, appointmentID, day, slot string) error {
	body := map[string]string{"day": day, "slot": slot}
	return c.do(ctx, http.MethodPut, "/booking/update-booking/"+url.PathEscape(appointmentID), body, nil)
}

func (c *Client) CancelAppointment(ctx context.Context, appointmentID string) error {
	return c.do(ctx, http.MethodDelete, "/booking/cancel-doctor/"+url.PathEscape(appointmentID), nil, nil)
}

func (c *Client) MyBookings(ctx context.Context, filter string) ([]Appointment, error) {
	path := "/booking/my-bookings"
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}
	var out struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

func (c *Client) CreateSetupIntent(ctx context.Context) (string, error) {
	var out struct {
		SetupIntent struct {
			ClientSecret string `json:"client_secret"`
		} `json:"setupIntent"`
	}
	if err := c.do(ctx, http.MethodPost, "/payment/create-setup-intent", nil, &out); err != nil {
		return "", err
	}
	return out.SetupIntent.ClientSecret, nil
}

func (c *Client) AddPaymentMethod(ctx context.Context, pmID string) error {
	return c.do(ctx, http.MethodPost, "/payment/add-payment-method", map[string]string{"pm_id": pmID}, nil)
}

func (c *Client) RemovePaymentMethod(ctx context.Context, pmID string) error {
	return c.do(ctx, http.MethodPost, "/payment/remove-payment-method", map[string]string{"pm_id": pmID}, nil)
}

func (c *Client) PaymentMethods(ctx context.Context) ([]Card, error) {
	var out struct {
		Cards []Card `json:"cards"`
	}
	if err := c.do(ctx, http.MethodGet, "/payment/payment-methods", nil, &out); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// SignUp registers a patient account and returns nothing; callers sign
// in afterwards.
func (c *Client) SignUp(ctx context.Context, fullname, email, password string) error {
	body := map[string]string{"fullname": fullname, "email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/signup", body, nil)
}

// SignIn stores the returned access token on the session.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &out); err != nil {
		return err
	}
	c.session.SetToken(out.AccessToken)
	return nil
}

func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var out struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) MyNotifications(ctx context.Context) ([]Notification, error) {
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/notification/my-notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}
