package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medilink/telehealth-booking/internal/access"
	"github.com/medilink/telehealth-booking/internal/api"
	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/availability"
	"github.com/medilink/telehealth-booking/internal/config"
	"github.com/medilink/telehealth-booking/internal/db"
	"github.com/medilink/telehealth-booking/internal/events"
	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/internal/notification"
	"github.com/medilink/telehealth-booking/internal/observability/metrics"
	"github.com/medilink/telehealth-booking/internal/payment"
	redisclient "github.com/medilink/telehealth-booking/internal/redis"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	hub := notification.NewHub(logger)
	dispatcher := notification.NewDispatcher(notification.NewPgRepository(pgPool), hub, logger, m)

	apptRepo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	apptSvc := appointment.NewService(apptRepo, locker, dispatcher, cfg, logger, m)

	availSvc := availability.NewService(availability.NewPgRepository(pgPool), cfg.SlotDuration, logger)

	var gateway payment.Gateway
	if cfg.AllowFakeGateway {
		logger.Warn("using fake payment gateway, do not run this in production")
		gateway = payment.NewFakeGateway("http://localhost:"+cfg.HTTPPort, logger)
	} else {
		gateway = payment.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, logger)
	}

	paySvc := payment.NewService(
		payment.NewPgRepository(pgPool),
		apptRepo,
		gateway,
		events.NewProcessedStore(pgPool),
		dispatcher,
		logger,
		m,
	)

	router := api.NewRouter(api.RouterConfig{
		Availability:  availSvc,
		Appointments:  apptSvc,
		Payments:      paySvc,
		Access:        access.NewGate(apptRepo, logger),
		Notifications: dispatcher,
		Hub:           hub,
		Verifier:      identity.NewVerifier(cfg.JWTSecret),
		WebhookSecret: cfg.GatewaySecret,
		PgPool:        pgPool,
		Redis:         rdb,
		Logger:        logger,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
