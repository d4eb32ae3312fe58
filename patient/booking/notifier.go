package booking

import (
	"context"
	"log/slog"
)

// Outcome describes a confirmed booking for user-facing notification.
type Outcome struct {
	DoctorName string
	Date       string // e.g. "Tuesday, June 10"
	Time       string // e.g. "09:00"
}

// Notifier receives the terminal result of a booking attempt.
type Notifier interface {
	BookingSucceeded(ctx context.Context, outcome Outcome)
	BookingFailed(ctx context.Context, message string)
}

// LogNotifier reports outcomes to the logger; the CLI uses it in place
// of the web app's toasts. A nil Logger falls back to slog.Default.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *LogNotifier) BookingSucceeded(ctx context.Context, outcome Outcome) {
	n.logger().InfoContext(ctx, "booking confirmed",
		"doctor", outcome.DoctorName,
		"date", outcome.Date,
		"time", outcome.Time,
	)
}

func (n *LogNotifier) BookingFailed(ctx context.Context, message string) {
	n.logger().WarnContext(ctx, "booking failed", "reason", message)
}
