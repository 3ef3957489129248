package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/config"
	"github.com/hackgods/blood-donation-scheduling/internal/db"
	"github.com/hackgods/blood-donation-scheduling/internal/notify"
	"github.com/hackgods/blood-donation-scheduling/internal/obs"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("no_show_grace", cfg.NoShowGrace),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// The sweep only issues guarded status updates, so it needs no lock.
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), redisclient.NewLocalLocker(), cfg,
		appointment.WithLogger(logger))

	if cfg.NotifyAsync && cfg.NotifyURL != "" {
		srv := asynq.NewServer(
			asynq.RedisClientOpt{Addr: cfg.RedisAddr, Username: cfg.RedisUsername, Password: cfg.RedisPassword},
			asynq.Config{
				Concurrency: 5,
				Queues:      map[string]int{notify.QueueName: 1},
				Logger:      logger.Sugar(),
			},
		)
		client := notify.NewClient(cfg.NotifyURL, cfg.NotifyToken, cfg.NotifyTimeout)
		if err := srv.Start(notify.NewMux(client, logger)); err != nil {
			logger.Fatal("start notification queue", zap.Error(err))
		}
		defer srv.Shutdown()
		logger.Info("notification queue consumer started", zap.String("queue", notify.QueueName))
	}

	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkOverdueNoShows(runCtx)
	if err != nil {
		logger.Error("no-show sweep failed", zap.Error(err))
		return
	}
	logger.Info("no-show sweep complete", zap.Int("marked", marked), zap.Duration("took", time.Since(start)))
}
