package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDuplicateProviderEvent = errors.New("provider event already recorded")

// PaymentEvent is a processor webhook delivery, stored for idempotency
// and for the refund reconciler.
type PaymentEvent struct {
	ProviderEventID string
	EventType       string
	PaymentIntent   string
	Amount          int64
	Payload         []byte
}

func (r *BookingRepository) InsertPaymentEvent(ctx context.Context, evt PaymentEvent) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO payment_events (provider_event_id, event_type, payment_intent, amount, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_event_id) DO NOTHING
	`, evt.ProviderEventID, evt.EventType, evt.PaymentIntent, evt.Amount, evt.Payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}

// OrphanedIntent is a succeeded payment with no appointment row after
// the grace period, i.e. money taken for a booking that never landed.
type OrphanedIntent struct {
	PaymentIntent string
	Amount        int64
	ReceivedAt    time.Time
}

func (r *BookingRepository) ListOrphanedIntents(ctx context.Context, grace time.Duration, limit int) ([]OrphanedIntent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pe.payment_intent, pe.amount, pe.created_at
		FROM payment_events pe
		WHERE pe.event_type = 'payment_intent.succeeded'
		  AND pe.payment_intent <> ''
		  AND pe.refunded_at IS NULL
		  AND pe.created_at < now() - make_interval(secs => $1)
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a WHERE a.payment_intent = pe.payment_intent
		  )
		ORDER BY pe.created_at
		LIMIT $2
	`, grace.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []OrphanedIntent
	for rows.Next() {
		var o OrphanedIntent
		if err := rows.Scan(&o.PaymentIntent, &o.Amount, &o.ReceivedAt); err != nil {
			return nil, err
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}

func (r *BookingRepository) MarkRefunded(ctx context.Context, paymentIntent string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payment_events
		SET refunded_at = now()
		WHERE payment_intent = $1
	`, paymentIntent)
	return err
}
