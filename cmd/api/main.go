package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/api/routes"
	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/internal/attribution"
	"github.com/angelmondragon/closetrack-backend/internal/calendars"
	"github.com/angelmondragon/closetrack-backend/internal/commissions"
	"github.com/angelmondragon/closetrack-backend/internal/companies"
	"github.com/angelmondragon/closetrack-backend/internal/contacts"
	"github.com/angelmondragon/closetrack-backend/internal/dispatch"
	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/internal/pcn"
	"github.com/angelmondragon/closetrack-backend/internal/users"
	"github.com/angelmondragon/closetrack-backend/internal/webhookevents"
	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/db"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/metrics"
	"github.com/angelmondragon/closetrack-backend/pkg/migrate"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/redis"
	"github.com/angelmondragon/closetrack-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sealer, err := security.NewCredentialSealer(cfg.Credentials.KeyBytes())
	if err != nil {
		logg.Error(context.Background(), "failed to create credential sealer", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	eventLog, err := webhookevents.NewService(webhookevents.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook event log", err)
		os.Exit(1)
	}
	companiesService, err := companies.NewService(companies.NewRepository(gormDB), sealer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create companies service", err)
		os.Exit(1)
	}

	appointmentRepo := appointments.NewRepository(gormDB)
	appointmentsService, err := appointments.NewService(appointmentRepo, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create appointments service", err)
		os.Exit(1)
	}

	resolver, err := attribution.NewResolver(attribution.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create attribution resolver", err)
		os.Exit(1)
	}

	fallbackRate, err := decimal.NewFromString(cfg.Commission.FallbackRate)
	if err != nil {
		logg.Error(context.Background(), "invalid commission fallback rate", err)
		os.Exit(1)
	}
	usersRepo := users.NewRepository(gormDB)
	commissionsService, err := commissions.NewService(commissions.ServiceParams{
		Repo:              commissions.NewRepository(gormDB),
		Users:             usersRepo,
		Companies:         companiesService,
		Events:            outboxService,
		TransactionRunner: dbClient,
		FallbackRate:      fallbackRate,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commissions service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Sales:             payments.NewRepository(gormDB),
		Unmatched:         payments.NewUnmatchedRepository(gormDB),
		Appointments:      appointmentRepo,
		Companies:         companiesService,
		Commissions:       commissionsService,
		Events:            outboxService,
		TransactionRunner: dbClient,
		Matching:          cfg.Matching,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	pcnService, err := pcn.NewService(pcn.ServiceParams{
		Appointments:      appointmentRepo,
		Changelog:         pcn.NewChangelogRepository(gormDB),
		Drafts:            pcn.NewDraftRepository(gormDB),
		Events:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pcn service", err)
		os.Exit(1)
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.DispatcherParams{
		Verifier:     dispatch.NewVerifier(cfg.Webhook),
		EventLog:     eventLog,
		Tenants:      companiesService,
		Appointments: appointmentsService,
		Contacts:     contacts.NewRepository(gormDB),
		Calendars:    calendars.NewRepository(gormDB),
		Closers:      usersRepo,
		Attribution:  resolver,
		Payments:     paymentsService,
		PCN:          pcnService,
		Dedupe:       redisClient,
		Metrics:      metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Webhook:      cfg.Webhook,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dispatcher", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, dispatcher, pcnService, paymentsService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
