// Command patient-cli drives the patient API from a terminal: search
// doctors, inspect availability, book with a stored card, list and
// cancel bookings. Useful for smoke testing a running stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/careslot/careslot/patient/api"
	"github.com/careslot/careslot/patient/booking"
)

func main() {
	baseURL := flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "gateway base url")
	email := flag.String("email", os.Getenv("PATIENT_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("PATIENT_PASSWORD"), "account password")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session := &api.Session{}
	client := api.NewClient(*baseURL, session)

	needsAuth := args[0] != "doctors" && args[0] != "doctor"
	if needsAuth {
		if *email == "" || *password == "" {
			fatal("PATIENT_EMAIL and PATIENT_PASSWORD are required for " + args[0])
		}
		if err := client.SignIn(ctx, *email, *password); err != nil {
			fatal("sign in failed: " + err.Error())
		}
	}

	switch args[0] {
	case "doctors":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		listDoctors(ctx, client, query)
	case "doctor":
		requireArg(args, 1, "doctor <id>")
		showDoctor(ctx, client, args[1])
	case "book":
		requireArg(args, 3, "book <doctor-id> <day> <slot>")
		book(ctx, client, args[1], args[2], args[3])
	case "bookings":
		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		listBookings(ctx, client, filter)
	case "cancel":
		requireArg(args, 1, "cancel <appointment-id>")
		if err := client.CancelAppointment(ctx, args[1]); err != nil {
			fatal(err.Error())
		}
		fmt.Println("cancelled")
	case "notifications":
		listNotifications(ctx, client)
	default:
		usage()
	}
}

func listDoctors(ctx context.Context, client *api.Client, query string) {
	doctors, err := client.SearchDoctors(ctx, api.DoctorQuery{Name: query})
	if err != nil {
		fatal(err.Error())
	}
	for _, d := range doctors {
		fmt.Printf("%s  %-28s %-16s %.2f EGP  rating %.1f\n", d.ID, d.Fullname, d.Specialty, d.Price, d.AvgRating)
	}
}

func showDoctor(ctx context.Context, client *api.Client, doctorID string) {
	details, err := client.GetDoctor(ctx, doctorID)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("%s (%s), %.2f EGP\n", details.Fullname, details.Specialty, details.Price)
	for _, day := range details.AvailableSlots {
		fmt.Printf("  %s: %v\n", day.Day, day.Slots)
	}
}

// book pays with the first stored card and confirms off-session; new
// cards need a browser for 3DS and are out of scope for a CLI.
func book(ctx context.Context, client *api.Client, doctorID, day, slot string) {
	details, err := client.GetDoctor(ctx, doctorID)
	if err != nil {
		fatal(err.Error())
	}

	profile, err := client.Me(ctx)
	if err != nil {
		fatal(err.Error())
	}
	cards, err := client.PaymentMethods(ctx)
	if err != nil {
		fatal(err.Error())
	}
	if len(cards) == 0 || profile.Customer == "" {
		fatal("no stored card on file; add one in the app first")
	}

	date, err := time.Parse(booking.DayFormat, day)
	if err != nil {
		fatal("day must be yyyy-MM-dd")
	}

	form := booking.NewForm(booking.NewSlotCatalog(details.AvailableSlots))
	if err := form.SelectDate(date); err != nil {
		fatal(err.Error())
	}
	if err := form.SelectTime(slot); err != nil {
		fatal(err.Error())
	}

	wf := &booking.Workflow{
		Intents:   client,
		Persister: client,
		Notifier:  &booking.LogNotifier{},
	}
	appt, err := wf.Submit(ctx, form, booking.SubmitParams{
		DoctorID:        doctorID,
		DoctorName:      details.Fullname,
		Price:           details.Price,
		PaymentMethodID: cards[0].ID,
		CustomerID:      profile.Customer,
		UseStoredCard:   true,
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("booked %s with %s on %s %s\n", appt.ID, details.Fullname, appt.Day, appt.Slot)
}

func listBookings(ctx context.Context, client *api.Client, filter string) {
	appts, err := client.MyBookings(ctx, filter)
	if err != nil {
		fatal(err.Error())
	}
	for _, a := range appts {
		fmt.Printf("%s  %-28s %s %s  [%s]\n", a.ID, a.DoctorName, a.Day, a.Slot, a.Status)
	}
}

func listNotifications(ctx context.Context, client *api.Client) {
	list, err := client.MyNotifications(ctx)
	if err != nil {
		fatal(err.Error())
	}
	for _, n := range list {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		fmt.Printf("%s %s: %s\n", marker, n.Title, n.Message)
	}
}

func requireArg(args []string, n int, usageLine string) {
	if len(args) <= n {
		fatal("usage: patient-cli " + usageLine)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: patient-cli [flags] <command>

commands:
  doctors [query]                 search doctors
  doctor <id>                     show a doctor and availability
  book <doctor-id> <day> <slot>   book with the first stored card
  bookings [filter]               list my bookings
  cancel <appointment-id>         cancel a booking
  notifications                   list my notifications`)
	os.Exit(2)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
