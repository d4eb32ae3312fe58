package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careslot/careslot/libs/config"
	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/libs/kafkax"
	otelx "github.com/careslot/careslot/libs/otel"
	"github.com/careslot/careslot/libs/runtime"
	"github.com/careslot/careslot/services/scheduler-service/internal/consumer"
	"github.com/careslot/careslot/services/scheduler-service/internal/inbox"
	"github.com/careslot/careslot/services/scheduler-service/internal/jobs"
	"github.com/careslot/careslot/services/scheduler-service/internal/outbox"
)

type bookingEvent struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	DoctorName    string `json:"doctor_name"`
	Day           string `json:"day"`
	Slot          string `json:"slot"`
}

func main() {
	service := config.String("SERVICE_NAME", "scheduler-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	jobRepo := jobs.NewRepository()
	outboxRepo := outbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	jobWorker := jobs.NewWorker(pool, jobRepo, outboxRepo, logger, jobs.WorkerConfig{
		Interval:  config.Duration("SCHEDULER_INTERVAL", 2*time.Second),
		BatchSize: config.Int("SCHEDULER_BATCH_SIZE", 50),
		Backoff:   config.Duration("SCHEDULER_BACKOFF", time.Minute),
	})
	go jobWorker.Run(ctx)

	lead := config.Duration("REMINDER_LEAD", 24*time.Hour)

	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.AppointmentID == "" || evt.UserID == "" {
			logger.Error("booking event missing ids", "topic", msg.Topic)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// A moved or cancelled appointment invalidates its pending reminder.
		if err := jobRepo.CancelPending(ctx, tx, evt.AppointmentID); err != nil {
			return err
		}

		if msg.Topic != "booking.appointment.cancelled.v1" {
			remindAt, err := jobs.RemindTime(evt.Day, evt.Slot, lead, time.Now().UTC())
			if err != nil {
				logger.Error("invalid schedule on booking event", "err", err, "appointment_id", evt.AppointmentID)
				return tx.Commit(ctx)
			}
			if err := jobRepo.Insert(ctx, tx, jobs.Job{
				AppointmentID: evt.AppointmentID,
				UserID:        evt.UserID,
				DoctorName:    evt.DoctorName,
				Day:           evt.Day,
				Slot:          evt.Slot,
				RemindAt:      remindAt,
			}); err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	}

	groupID := config.String("KAFKA_GROUP_ID", "scheduler-service")
	if brokers == "" {
		logger.Warn("event consumption disabled (no kafka brokers configured)")
	} else {
		for _, topic := range []string{
			"booking.appointment.booked.v1",
			"booking.appointment.updated.v1",
			"booking.appointment.cancelled.v1",
		} {
			c := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: brokers,
				GroupID: groupID,
				Topic:   topic,
			}, handle)
			go c.Run(ctx)
		}
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	wrapped := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	wrapped = otelhttp.NewHandler(wrapped, "scheduler")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           wrapped,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
