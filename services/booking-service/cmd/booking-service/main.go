package main

import (
	"context"
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
	"github.com/podologia/agenda/services/booking-service/internal/availability"
	"github.com/podologia/agenda/services/booking-service/internal/booking"
	"github.com/podologia/agenda/services/booking-service/internal/catalog"
	"github.com/podologia/agenda/services/booking-service/internal/handlers"
	"github.com/podologia/agenda/services/booking-service/internal/metrics"
	"github.com/podologia/agenda/services/booking-service/internal/outbox"
	"github.com/podologia/agenda/services/booking-service/internal/storage"
	"github.com/podologia/agenda/services/booking-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotEnv()

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

	schedule, err := availability.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid schedule configuration", "err", err)
		panic(err)
	}
	logger.Info("schedule loaded",
		"opening", schedule.Opening,
		"last_start", schedule.LastStart,
		"closing", schedule.Closing,
		"buffer_minutes", schedule.HygienizationBufferMinutes,
		"location", schedule.Location.String(),
	)

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	if config.Bool("MIGRATE_ON_START", false) {
		if err := db.Migrate(dbURL, migrations.FS, "booking_schema_migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var locker booking.DateLocker = booking.NewLocalLocker()
	if rdb != nil {
		locker = booking.NewRedisLocker(rdb, "booking:lock", 10*time.Second, 5*time.Second)
	} else {
		logger.Warn("REDIS_ADDR not set; date locks only cover this process")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	repo := storage.NewBookingRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	outboxRepo := outbox.NewRepository()

	retentionHours, err := config.Int("OUTBOX_RETENTION_HOURS", 168)
	if err != nil {
		panic(err)
	}
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		Observer:  bookingMetrics,
		Retention: time.Duration(retentionHours) * time.Hour,
		Pruner:    pool,
	})
	go outboxPublisher.Run(ctx)

	svc := booking.NewService(schedule, booking.Deps{
		Repo:    repo,
		Catalog: catalogRepo,
		Outbox:  outboxRepo,
		Locker:  locker,
		Metrics: bookingMetrics,
		Logger:  logger,
	})

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	tokenTTL, err := config.Int("ADMIN_TOKEN_TTL_MINUTES", 720)
	if err != nil {
		panic(err)
	}
	adminHandler := handlers.NewAdminHandler(
		handlers.NewBookingHandler(svc, catalogRepo, logger),
		auth.AdminCredentials{
			Email:        config.String("ADMIN_EMAIL", ""),
			PasswordHash: config.String("ADMIN_PASSWORD_HASH", ""),
		},
		jwtSecret,
		time.Duration(tokenTTL)*time.Minute,
	)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handlers.Register(mux, adminHandler, httpx.RequireAuth(jwtSecret, auth.RoleAdmin))

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	var limiter httpx.Middleware = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "booking:rl").Middleware(logger, true)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders: []string{"Idempotent-Replayed", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		limiter,
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("booking service ready", "closed_days", strings.Join(weekdayNames(schedule), ","))
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		panic(err)
	}
}

func weekdayNames(cfg availability.Config) []string {
	names := make([]string, 0, len(cfg.ClosedDays))
	for _, wd := range cfg.ClosedDays {
		names = append(names, strings.ToLower(wd.String()[:3]))
	}
	return names
}
