package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/podologia/agenda/libs/auth"
	"github.com/podologia/agenda/libs/config"
	"github.com/podologia/agenda/libs/db"
	"github.com/podologia/agenda/libs/httpx"
	"github.com/podologia/agenda/libs/kafkax"
	otelx "github.com/podologia/agenda/libs/otel"
	"github.com/podologia/agenda/libs/runtime"
	"github.com/podologia/agenda/services/notification-service/internal/consumer"
	"github.com/podologia/agenda/services/notification-service/internal/email"
	"github.com/podologia/agenda/services/notification-service/internal/handlers"
	"github.com/podologia/agenda/services/notification-service/internal/inbox"
	"github.com/podologia/agenda/services/notification-service/internal/notifier"
	"github.com/podologia/agenda/services/notification-service/internal/reminders"
	"github.com/podologia/agenda/services/notification-service/internal/storage"
	"github.com/podologia/agenda/services/notification-service/internal/templates"
	"github.com/podologia/agenda/services/notification-service/internal/whatsapp"
	"github.com/podologia/agenda/services/notification-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var bookingTopics = []string{
	"booking.appointment.booked.v1",
	"booking.appointment.rescheduled.v1",
	"booking.appointment.status_changed.v1",
	"booking.appointment.cancelled.v1",
}

func main() {
	_ = config.LoadDotEnv()

	service := config.String("SERVICE_NAME", "notification-service")
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
	if config.Bool("MIGRATE_ON_START", false) {
		if err := db.Migrate(dbURL, migrations.FS, "notification_schema_migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	renderer, err := templates.New()
	if err != nil {
		panic(err)
	}

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	dispatcher := notifier.NewDispatcher(notifier.Config{
		PracticeName:     config.String("PRACTICE_NAME", "Podologia"),
		PracticeEmail:    config.String("PRACTICE_EMAIL", ""),
		PracticeWhatsApp: config.String("PRACTICE_WHATSAPP", ""),
		FailSuffix:       config.String("NOTIFICATION_FAIL_SUFFIX", ""),
	}, emailSender(logger), whatsappSender(logger), renderer, notificationsRepo, notifier.NewMetrics(reg), logger)

	leadHours, err := config.Int("REMINDER_LEAD_HOURS", 24)
	if err != nil {
		panic(err)
	}
	loc := time.Local
	if name := config.String("TZ_LOCATION", ""); name != "" {
		if loc, err = time.LoadLocation(name); err != nil {
			panic(err)
		}
	}
	reminderRepo := reminders.NewRepository()
	var planner *reminders.Planner
	if leadHours > 0 {
		planner = reminders.NewPlanner(reminderRepo, pool, time.Duration(leadHours)*time.Hour, loc)
		reminderWorker := reminders.NewWorker(pool, reminderRepo, func(ctx context.Context, job reminders.Job) error {
			return dispatcher.Remind(ctx, job.Payload)
		}, logger, reminders.WorkerConfig{Interval: 30 * time.Second, BatchSize: 50, Backoff: 5 * time.Minute})
		go reminderWorker.Run(ctx)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	retries, err := config.Int("NOTIFICATION_MAX_ATTEMPTS", 3)
	if err != nil {
		panic(err)
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers:     brokers,
		GroupID:     config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:      bookingTopics,
		MaxAttempts: retries,
		RetryDelay:  2 * time.Second,
	}, func(ctx context.Context, msg kafka.Message) error {
		eventType := kafkax.ExtractEventMeta(msg).EventType
		if planner != nil {
			if err := planner.Plan(ctx, eventType, msg.Value); err != nil {
				return err
			}
		}
		return dispatcher.Handle(ctx, eventType, msg.Value)
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if secret := config.String("JWT_SECRET", ""); secret != "" {
		history := handlers.NewHistoryHandler(notificationsRepo, logger)
		mux.Handle("/admin/notifications", httpx.RequireAuth(secret, auth.RoleAdmin)(history))
	}

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithTimeout(10*time.Second),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		panic(err)
	}
}

// emailSender prefers SendGrid when an API key is configured.
func emailSender(logger *slog.Logger) email.Sender {
	switch strings.ToLower(config.String("EMAIL_PROVIDER", "")) {
	case "stub":
		return email.NewStubSender(logger)
	case "smtp":
		return smtpSender()
	}
	if sg := email.NewSendGridSender(email.SendGridConfig{
		APIKey:    config.String("SENDGRID_API_KEY", ""),
		FromEmail: config.String("SENDGRID_FROM_EMAIL", "agenda@podologia.local"),
		FromName:  config.String("SENDGRID_FROM_NAME", ""),
	}); sg != nil {
		logger.Info("email provider selected", "provider", sg.ProviderID())
		return sg
	}
	return smtpSender()
}

func smtpSender() email.Sender {
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     config.String("SMTP_HOST", "mailpit"),
		Port:     config.String("SMTP_PORT", "1025"),
		From:     config.String("SMTP_FROM", "agenda@podologia.local"),
		Username: config.String("SMTP_USERNAME", ""),
		Password: config.String("SMTP_PASSWORD", ""),
	})
}

func whatsappSender(logger *slog.Logger) whatsapp.Sender {
	token := config.String("WHATSAPP_TOKEN", "")
	phoneID := config.String("WHATSAPP_PHONE_NUMBER_ID", "")
	if token == "" || phoneID == "" {
		logger.Warn("whatsapp not configured; messages are dropped")
		return whatsapp.NewNoopSender()
	}
	return whatsapp.NewCloudSender(whatsapp.CloudConfig{
		BaseURL:       config.String("WHATSAPP_API_BASE_URL", ""),
		Token:         token,
		PhoneNumberID: phoneID,
	})
}
