package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careslot/careslot/libs/config"
	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/libs/kafkax"
	otelx "github.com/careslot/careslot/libs/otel"
	"github.com/careslot/careslot/libs/runtime"
	"github.com/careslot/careslot/services/booking-service/internal/handlers"
	"github.com/careslot/careslot/services/booking-service/internal/outbox"
	"github.com/careslot/careslot/services/booking-service/internal/payments"
	"github.com/careslot/careslot/services/booking-service/internal/reconcile"
	"github.com/careslot/careslot/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	stripeKey, err := config.RequiredString("STRIPE_SECRET_KEY")
	if err != nil {
		panic(err)
	}
	gateway := payments.NewStripeGateway(stripeKey)

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	handler := handlers.New(repo, outboxRepo, gateway, logger)

	webhookSecret := config.String("STRIPE_WEBHOOK_SECRET", "")
	var webhookHandler *handlers.WebhookHandler
	if webhookSecret != "" {
		webhookHandler = handlers.NewWebhookHandler(repo, webhookSecret)
	} else {
		logger.Warn("stripe webhook disabled (STRIPE_WEBHOOK_SECRET missing)")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	refunder := reconcile.NewRefunder(pool, repo, gateway, logger, reconcile.RefunderConfig{
		Grace:     config.Duration("REFUND_GRACE", 30*time.Minute),
		BatchSize: config.Int("REFUND_BATCH_SIZE", 50),
	})
	go refunder.Run(ctx, config.Duration("REFUND_INTERVAL", 5*time.Minute))

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/booking/book-intent/", handler.BookIntent)
	mux.HandleFunc("/booking/book-doctor/", handler.BookDoctor)
	mux.HandleFunc("/booking/update-booking/", handler.UpdateBooking)
	mux.HandleFunc("/booking/cancel-doctor/", handler.CancelBooking)
	mux.HandleFunc("/booking/my-bookings", handler.MyBookings)
	mux.HandleFunc("/payment/create-setup-intent", handler.CreateSetupIntent)
	mux.HandleFunc("/payment/add-payment-method", handler.AddPaymentMethod)
	mux.HandleFunc("/payment/remove-payment-method", handler.RemovePaymentMethod)
	mux.HandleFunc("/payment/payment-methods", handler.ListPaymentMethods)
	if webhookHandler != nil {
		mux.HandleFunc("/payment/webhook", webhookHandler.HandleStripeEvent)
	}

	wrapped := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	wrapped = otelhttp.NewHandler(wrapped, "booking")
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
