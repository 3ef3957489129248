package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/api"
	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/assignment"
	"github.com/hackgods/blood-donation-scheduling/internal/auth"
	"github.com/hackgods/blood-donation-scheduling/internal/config"
	"github.com/hackgods/blood-donation-scheduling/internal/db"
	"github.com/hackgods/blood-donation-scheduling/internal/notify"
	"github.com/hackgods/blood-donation-scheduling/internal/obs"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
	"github.com/hackgods/blood-donation-scheduling/internal/stats"
)

var version = "dev"

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.Timezone.String()),
		zap.String("version", version),
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

	// Redis carries locks, caches and the notification queue. Without it the
	// server still runs: locks fall back to in-process and the database
	// constraints keep the scheduling guarantees.
	var (
		locker redisclient.Locker = redisclient.NewLocalLocker()
		cache  redisclient.Cache
		rdb    *redis.Client
	)
	rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, running with local locks and no cache", zap.Error(err))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		cache = redisclient.NewRedisCache(rdb, "donation:")
		logger.Info("connected to Redis")
	}

	opts := []appointment.Option{appointment.WithLogger(logger)}
	switch {
	case cfg.NotifyURL == "":
		logger.Warn("NOTIFY_URL not set, donor requests are disabled")
	case cfg.NotifyAsync:
		if rdb == nil {
			logger.Fatal("NOTIFY_ASYNC requires Redis")
		}
		queue := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = queue.Close() }()
		opts = append(opts, appointment.WithNotifier(notify.NewQueueNotifier(queue)))
	default:
		opts = append(opts, appointment.WithNotifier(notify.NewClient(cfg.NotifyURL, cfg.NotifyToken, cfg.NotifyTimeout)))
	}

	tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("auth tokens", zap.Error(err))
	}

	var roles auth.RoleStore = auth.NewPgRoleStore(pgPool)
	if cache != nil {
		roles = auth.NewCachedRoleStore(roles, cache, cfg.RoleCacheTTL, logger)
	}

	appointments := appointment.NewService(appointment.NewPgRepository(pgPool), locker, cfg, opts...)
	assignments := assignment.NewService(assignment.NewPgRepository(pgPool), locker, logger)
	dashboard := stats.NewService(stats.NewPgRepository(pgPool), cache, cfg.StatsCacheTTL, cfg.Timezone, logger)

	var redisPing api.Pinger
	if rdb != nil {
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	obs.Register()

	router := api.NewRouter(api.RouterConfig{
		Appointments:   appointments,
		Assignments:    assignments,
		Stats:          dashboard,
		Tokens:         tokens,
		Roles:          roles,
		Logger:         logger,
		Postgres:       pgPool.Ping,
		Redis:          redisPing,
		Env:            cfg.Env,
		Version:        version,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("api-server stopped")
}
