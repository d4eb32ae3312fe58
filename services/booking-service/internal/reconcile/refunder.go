// Package reconcile refunds succeeded payments that never turned into
// an appointment, e.g. when the client died between paying and booking.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/services/booking-service/internal/payments"
	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

type Refunder struct {
	pool        *db.Pool
	repo        *storage.BookingRepository
	gateway     payments.Gateway
	logger      *slog.Logger
	grace       time.Duration
	batchSize   int
	advisoryKey int64
}

type RefunderConfig struct {
	Grace           time.Duration
	Interval        time.Duration
	BatchSize       int
	AdvisoryLockKey int64
}

func NewRefunder(pool *db.Pool, repo *storage.BookingRepository, gateway payments.Gateway, logger *slog.Logger, cfg RefunderConfig) *Refunder {
	grace := cfg.Grace
	if grace <= 0 {
		grace = 30 * time.Minute
	}
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 50
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		// Stable-ish default; override via env if you run multiple booking instances.
		lockKey = 7301001
	}
	return &Refunder{
		pool:        pool,
		repo:        repo,
		gateway:     gateway,
		logger:      logger,
		grace:       grace,
		batchSize:   bs,
		advisoryKey: lockKey,
	}
}

func (r *Refunder) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	// Best-effort leader election for multi-instance deployments.
	// Only the instance holding the advisory lock will refund.
	for {
		if ctx.Err() != nil {
			return
		}
		var locked bool
		if err := r.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, r.advisoryKey).Scan(&locked); err != nil {
			r.logger.Error("refund reconcile: failed to acquire advisory lock", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if !locked {
			r.logger.Info("refund reconcile: advisory lock held by another instance", "lock_key", r.advisoryKey)
			time.Sleep(30 * time.Second)
			continue
		}
		r.logger.Info("refund reconcile: advisory lock acquired", "lock_key", r.advisoryKey)
		defer func() {
			_, _ = r.pool.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, r.advisoryKey)
		}()
		break
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on startup to self-heal faster after downtime.
	r.reconcileOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileOnce(ctx)
		}
	}
}

func (r *Refunder) reconcileOnce(ctx context.Context) {
	orphans, err := r.repo.ListOrphanedIntents(ctx, r.grace, r.batchSize)
	if err != nil {
		r.logger.Error("refund reconcile: failed to list orphaned intents", "err", err)
		return
	}

	for _, o := range orphans {
		if ctx.Err() != nil {
			return
		}
		if err := r.gateway.Refund(ctx, o.PaymentIntent); err != nil {
			r.logger.Warn("refund reconcile: refund failed", "err", err, "payment_intent", o.PaymentIntent)
			continue
		}
		if err := r.repo.MarkRefunded(ctx, o.PaymentIntent); err != nil {
			r.logger.Error("refund reconcile: failed to mark refunded", "err", err, "payment_intent", o.PaymentIntent)
			continue
		}
		r.logger.Info("refund reconcile: refunded orphaned payment", "payment_intent", o.PaymentIntent, "amount", o.Amount)
	}
}
