package booking

import (
	"context"
	"log/slog"
	"testing"
)

type capturingHandler struct {
	slog.Handler
	records []slog.Record
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func TestLogNotifierZeroValueDoesNotPanic(t *testing.T) {
	n := &LogNotifier{}
	ctx := context.Background()

	n.BookingSucceeded(ctx, Outcome{DoctorName: "Dr. Salma Hassan", Date: "Tuesday, June 10", Time: "09:00"})
	n.BookingFailed(ctx, "Your card was declined.")
}

func TestLogNotifierUsesGivenLogger(t *testing.T) {
	h := &capturingHandler{Handler: slog.DiscardHandler}
	n := &LogNotifier{Logger: slog.New(h)}

	n.BookingSucceeded(context.Background(), Outcome{DoctorName: "Dr. Salma Hassan"})
	n.BookingFailed(context.Background(), "Selected slot is not available.")

	if len(h.records) != 2 {
		t.Fatalf("expected 2 log records, got %d", len(h.records))
	}
	if h.records[0].Message != "booking confirmed" || h.records[1].Message != "booking failed" {
		t.Fatalf("unexpected messages: %q, %q", h.records[0].Message, h.records[1].Message)
	}
}
