package api

// Doctor is the summary shape returned by search and top-rated listings.
type Doctor struct {
	ID           string  `json:"id"`
	Fullname     string  `json:"fullname"`
	Specialty    string  `json:"specialty"`
	Photo        string  `json:"photo"`
	Price        float64 `json:"price"`
	AvgRating    float64 `json:"avg_rating"`
	TotalRating  int     `json:"total_rating"`
	TotalPatient int     `json:"total_patient"`
	Experience   int     `json:"experience"`
	LocationX    float64 `json:"location_x"`
	LocationY    float64 `json:"location_y"`
}

// DaySlots is one entry of a doctor's availability calendar.
type DaySlots struct {
	Day   string   `json:"day"` // yyyy-MM-dd
	Slots []string `json:"slots"`
}

type Review struct {
	ID        string  `json:"id"`
	Reviewer  string  `json:"reviewer"`
	Rate      float64 `json:"rate"`
	Comment   string  `json:"comment"`
	CreatedAt string  `json:"created_at"`
}

// DoctorDetails is the full profile backing the booking page.
type DoctorDetails struct {
	Doctor
	About          string     `json:"about"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	AvailableSlots []DaySlots `json:"available_slots"`
	Reviews        []Review   `json:"reviews"`
	IsFavourite    bool       `json:"is_favourite"`
}

type Appointment struct {
	ID            string  `json:"id"`
	DoctorID      string  `json:"doctor_id"`
	DoctorName    string  `json:"doctor_name"`
	Specialty     string  `json:"specialty"`
	Day           string  `json:"day"`
	Slot          string  `json:"slot"`
	Status        string  `json:"status"`
	Price         float64 `json:"price"`
	PaymentIntent string  `json:"payment_intent"`
}

// PaymentIntent mirrors the subset of the processor's intent the
// booking flow needs.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// AutomaticPaymentMethods asks the processor to pick eligible methods.
type AutomaticPaymentMethods struct {
	Enabled bool `json:"enabled"`
}

// IntentOptions is the body of a book-intent call. New-card bookings
// set AutomaticPaymentMethods; stored-card bookings set Customer,
// PaymentMethod, OffSession and Confirm instead.
type IntentOptions struct {
	Amount                  int64                    `json:"amount"`
	Currency                string                   `json:"currency"`
	AutomaticPaymentMethods *AutomaticPaymentMethods `json:"automatic_payment_methods,omitempty"`
	Customer                string                   `json:"customer,omitempty"`
	PaymentMethod           string                   `json:"payment_method,omitempty"`
	OffSession              bool                     `json:"off_session,omitempty"`
	Confirm                 bool                     `json:"confirm,omitempty"`
}

// AppointmentRequest is the body of a book-doctor call.
type AppointmentRequest struct {
	Day           string `json:"day"` // yyyy-MM-dd
	Slot          string `json:"slot"`
	PaymentIntent string `json:"paymentIntent"`
}

// Card is a stored payment method as listed on the payment page.
type Card struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
	Last4    string `json:"last4"`
}

type Profile struct {
	ID        string `json:"id"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	Avatar    string `json:"avatar"`
	Customer  string `json:"customer"` // processor customer id
}

type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}
