package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kycflow/internal/audit"
	"kycflow/internal/bulk"
	"kycflow/internal/crypto"
	"kycflow/internal/domain"
	"kycflow/internal/health"
	"kycflow/internal/linktoken"
	"kycflow/internal/notify"
	"kycflow/internal/platform/config"
	"kycflow/internal/platform/httpserver"
	"kycflow/internal/platform/logger"
	"kycflow/internal/platform/metrics"
	platformredis "kycflow/internal/platform/redis"
	"kycflow/internal/queue"
	"kycflow/internal/ratelimit"
	"kycflow/internal/registry"
	"kycflow/internal/storage"
	httptransport "kycflow/internal/transport/http"
	"kycflow/internal/usage"
	"kycflow/internal/verify"
	"kycflow/pkg/platform/circuit"
)

// main wires the pipeline: stores, registry clients behind their guards,
// the verification service, queue, bulk controller, and monitor, then
// hands the router to the HTTP server. Business logic stays in the
// internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	mt := metrics.New()

	vault, err := crypto.NewVault(cfg.EncryptionKeyHex)
	if err != nil {
		log.Error("encryption key rejected", "error", err)
		os.Exit(1)
	}

	stores, err := buildStores(cfg, log)
	if err != nil {
		log.Error("store wiring failed", "error", err)
		os.Exit(1)
	}

	trail := audit.NewTrail(stores.audits, audit.WithLogger(log), audit.WithMetrics(mt))
	tracker := usage.NewTracker(stores.usage, usage.WithLogger(log))
	notifier := notify.NewStoreNotifier(stores.notifications, log)

	providers := buildProviders(cfg, log, mt)

	service := verify.NewService(vault, providers, trail,
		verify.WithLogger(log),
		verify.WithMetrics(mt),
		verify.WithEntryStore(stores.entries),
		verify.WithUsageTracker(tracker),
		verify.WithCostPerCall(cfg.CostPerCall),
	)

	q := queue.New(service, queue.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxSize:       cfg.MaxQueueSize,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		Retention:     cfg.RetentionWindow,
	},
		queue.WithLogger(log),
		queue.WithMetrics(mt),
		queue.WithNotifier(notifier),
	)

	controller := bulk.NewController(service, stores.entries, stores.jobs, trail,
		bulk.WithLogger(log),
		bulk.WithNotifier(notifier),
		bulk.WithBatchSize(cfg.BatchSize),
		bulk.WithDecrypter(vault),
	)

	probers := make(map[string]registry.Provider, len(providers))
	for _, p := range providers {
		probers[p.Name()] = p
	}
	monitor := health.NewMonitor(probers, trail, tracker, stores.alerts, stores.health,
		health.WithLogger(log),
		health.WithMetrics(mt),
		health.WithInterval(cfg.HealthCheckInterval),
		health.WithErrorRate(cfg.ErrorRateThreshold, cfg.ErrorRateMinSample, time.Hour),
		health.WithLimits(health.Limits{
			DailyCalls:   cfg.DailyCallLimit,
			MonthlyCalls: cfg.MonthlyCallLimit,
			DailyCost:    cfg.DailyCostLimit,
			MonthlyCost:  cfg.MonthlyCostLimit,
		}),
	)
	monitor.Start()

	handlerOpts := []httptransport.Option{httptransport.WithNotifier(notifier)}
	if cfg.LinkSigningKey != "" {
		links, err := linktoken.NewService(cfg.LinkSigningKey, cfg.LinkTTL)
		if err != nil {
			log.Error("link token wiring failed", "error", err)
			os.Exit(1)
		}
		handlerOpts = append(handlerOpts, httptransport.WithLinkService(links))
	}

	handler := httptransport.NewHandler(vault, q, controller, monitor, trail, stores.entries, log, handlerOpts...)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting kycflow", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	monitor.Stop()
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type storeSet struct {
	audits        storage.AuditStore
	entries       storage.EntryStore
	jobs          storage.JobStore
	alerts        storage.AlertStore
	health        storage.HealthStore
	usage         storage.UsageStore
	notifications storage.NotificationStore
}

// buildStores picks backends from config: Postgres for the audit trail and
// Redis for entries when configured, in-memory otherwise.
func buildStores(cfg config.Config, log *slog.Logger) (storeSet, error) {
	stores := storeSet{
		audits:        storage.NewInMemoryAuditStore(),
		entries:       storage.NewInMemoryEntryStore(),
		jobs:          storage.NewInMemoryJobStore(),
		alerts:        storage.NewInMemoryAlertStore(),
		health:        storage.NewInMemoryHealthStore(),
		usage:         storage.NewInMemoryUsageStore(),
		notifications: storage.NewInMemoryNotificationStore(),
	}

	if cfg.PostgresDSN != "" {
		db, err := storage.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return storeSet{}, err
		}
		stores.audits = storage.NewPostgresAuditStore(db)
		log.Info("audit trail backed by postgres")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return storeSet{}, err
	}
	if redisClient != nil {
		stores.entries = storage.NewRedisEntryStore(redisClient.Client)
		log.Info("entry store backed by redis")
	}
	return stores, nil
}

// buildProviders constructs the registry clients and wraps each in a guard
// carrying its rate limiter and circuit breaker. Providers with missing
// credentials still answer; they reject with not_configured at call time.
func buildProviders(cfg config.Config, log *slog.Logger, mt *metrics.Metrics) map[domain.IdentityKind]registry.Provider {
	nin := registry.NewNationalIDClient(cfg.RegistryBaseURL, cfg.RegistryServiceID, cfg.RequestTimeout,
		registry.WithNationalIDLogger(log),
		registry.WithNationalIDRetry(cfg.MaxRetries, cfg.RetryBaseDelay),
	)
	cac := registry.NewCompanyClient(cfg.CompanyRegistryURL, cfg.CompanySecretKey, cfg.RequestTimeout,
		registry.WithCompanyLogger(log),
		registry.WithCompanyRetry(cfg.MaxRetries, cfg.RetryBaseDelay),
	)

	guard := func(p registry.Provider) registry.Provider {
		limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
		breaker := circuit.New(p.Name())
		return registry.NewGuard(p, limiter, breaker,
			registry.WithGuardLogger(log),
			registry.WithGuardMetrics(mt),
		)
	}

	return map[domain.IdentityKind]registry.Provider{
		domain.KindNationalID:  guard(nin),
		domain.KindCorporateID: guard(cac),
	}
}
