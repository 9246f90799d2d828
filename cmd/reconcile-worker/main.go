package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/config"
	"github.com/medilink/telehealth-booking/internal/db"
	"github.com/medilink/telehealth-booking/internal/events"
	"github.com/medilink/telehealth-booking/internal/notification"
	"github.com/medilink/telehealth-booking/internal/observability/metrics"
	"github.com/medilink/telehealth-booking/internal/payment"
	redisclient "github.com/medilink/telehealth-booking/internal/redis"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

// The reconcile worker has two periodic jobs: auto-cancel confirmed
// appointments whose payment never arrived, and ask the gateway for the
// authoritative outcome of charges whose callback got lost.

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("reconcile-worker starting up", "env", cfg.Env, "interval", cfg.WorkerInterval.String())

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

	// The worker has no websocket clients; notifications land in the durable
	// inbox and reach users the next time they connect.
	dispatcher := notification.NewDispatcher(notification.NewPgRepository(pgPool), nil, logger, m)

	apptRepo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	apptSvc := appointment.NewService(apptRepo, locker, dispatcher, cfg, logger, m)

	var gateway payment.Gateway
	if cfg.AllowFakeGateway {
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

	// Run once at startup
	runOnce(rootCtx, logger, apptSvc, paySvc, cfg.WorkerInterval)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, apptSvc, paySvc, cfg.WorkerInterval)
		}
	}
}

func runOnce(ctx context.Context, logger *logging.Logger, appts *appointment.Service, payments *payment.Service, grace time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	if err := appts.CancelUnpaidConfirmed(runCtx); err != nil {
		logger.Error("unpaid sweep error", "error", err)
	}
	if err := payments.ReconcilePending(runCtx, grace); err != nil {
		logger.Error("payment reconcile error", "error", err)
	}

	logger.Info("reconcile run complete", "duration", time.Since(start).String())
}
