package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careslot/careslot/libs/config"
	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/libs/kafkax"
	otelx "github.com/careslot/careslot/libs/otel"
	"github.com/careslot/careslot/libs/runtime"
	"github.com/careslot/careslot/services/notification-service/internal/consumer"
	"github.com/careslot/careslot/services/notification-service/internal/email"
	"github.com/careslot/careslot/services/notification-service/internal/handlers"
	"github.com/careslot/careslot/services/notification-service/internal/inbox"
	"github.com/careslot/careslot/services/notification-service/internal/messages"
	"github.com/careslot/careslot/services/notification-service/internal/sms"
	"github.com/careslot/careslot/services/notification-service/internal/storage"
)

var bookingTopics = []string{
	"booking.appointment.booked.v1",
	"booking.appointment.updated.v1",
	"booking.appointment.cancelled.v1",
	"booking.appointment.reminder.v1",
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8084")
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

	repo := storage.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	var emailSender email.Sender = email.NullSender{}
	smtpHost := config.String("SMTP_HOST", "")
	if smtpHost != "" {
		emailSender = email.NewSMTPSender(
			smtpHost,
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", "no-reply@careslot.local"),
		)
	} else {
		logger.Warn("email delivery disabled (SMTP_HOST missing)")
	}

	var smsSender sms.Sender = sms.NewNoopSender()
	if strings.ToLower(config.String("SMS_PROVIDER", "noop")) == "webhook" {
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	}

	deliver := func(ctx context.Context, msg kafka.Message) error {
		var evt messages.BookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.UserID == "" {
			logger.Error("booking event missing user_id", "topic", msg.Topic)
			return nil
		}

		notification, ok := messages.ForEvent(msg.Topic, evt)
		if !ok {
			return nil
		}
		if _, err := repo.Insert(ctx, notification); err != nil {
			return err
		}

		contact, err := repo.GetContact(ctx, evt.UserID)
		if err != nil {
			logger.Warn("contact lookup failed, in-app only", "err", err, "user_id", evt.UserID)
			return nil
		}
		if contact.Email != "" {
			if err := emailSender.Send(contact.Email, notification.Title, notification.Message); err != nil {
				logger.Error("email send failed", "err", err, "user_id", evt.UserID)
			}
		}
		// Cancellations also go out by SMS; patients may not see email in time.
		if notification.Type == storage.TypeBookingCancelled && contact.Phone != "" {
			if err := smsSender.Send(ctx, contact.Phone, notification.Message); err != nil {
				logger.Error("sms send failed", "err", err, "user_id", evt.UserID)
			}
		}
		return nil
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	if brokers == "" {
		logger.Warn("event consumption disabled (no kafka brokers configured)")
	} else {
		for _, topic := range bookingTopics {
			c := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: brokers,
				GroupID: groupID,
				Topic:   topic,
			}, deliver)
			go c.Run(ctx)
		}
	}

	handler := handlers.New(repo)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/notification/my-notifications", handler.MyNotifications)
	mux.HandleFunc("/notification/mark-read/", handler.MarkRead)
	mux.HandleFunc("/notification/mark-all-read", handler.MarkAllRead)

	wrapped := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	wrapped = otelhttp.NewHandler(wrapped, "notification")
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
