package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/internal/commissions"
	"github.com/angelmondragon/closetrack-backend/internal/companies"
	"github.com/angelmondragon/closetrack-backend/internal/cron"
	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/internal/users"
	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/db"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/metrics"
	"github.com/angelmondragon/closetrack-backend/pkg/migrate"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/redis"
	"github.com/angelmondragon/closetrack-backend/pkg/security"
)

const lockKeyFormat = "ct:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paymentsService, err := buildPaymentsService(cfg, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire payments service", err)
		os.Exit(1)
	}

	rematchJob, err := cron.NewRematchJob(cron.RematchJobParams{
		Logger:   logg,
		Payments: paymentsService,
		Batch:    cfg.Cron.RematchBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rematch job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(rematchJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.RematchInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildPaymentsService(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (*payments.Service, error) {
	gormDB := dbClient.DB()

	sealer, err := security.NewCredentialSealer(cfg.Credentials.KeyBytes())
	if err != nil {
		return nil, err
	}
	companiesService, err := companies.NewService(companies.NewRepository(gormDB), sealer, logg)
	if err != nil {
		return nil, err
	}

	fallbackRate, err := decimal.NewFromString(cfg.Commission.FallbackRate)
	if err != nil {
		return nil, err
	}
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	commissionsService, err := commissions.NewService(commissions.ServiceParams{
		Repo:              commissions.NewRepository(gormDB),
		Users:             users.NewRepository(gormDB),
		Companies:         companiesService,
		Events:            outboxService,
		TransactionRunner: dbClient,
		FallbackRate:      fallbackRate,
		Logger:            logg,
	})
	if err != nil {
		return nil, err
	}

	return payments.NewService(payments.ServiceParams{
		Sales:             payments.NewRepository(gormDB),
		Unmatched:         payments.NewUnmatchedRepository(gormDB),
		Appointments:      appointments.NewRepository(gormDB),
		Companies:         companiesService,
		Commissions:       commissionsService,
		Events:            outboxService,
		TransactionRunner: dbClient,
		Matching:          cfg.Matching,
		Logger:            logg,
	})
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
