package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/curation"
	"github.com/planforge/planforge-api/internal/events"
	"github.com/planforge/planforge-api/internal/orchestrator"
	"github.com/planforge/planforge-api/internal/platform/gemini"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/platform/postgres"
	"github.com/planforge/planforge-api/internal/ratelimit"
	"github.com/planforge/planforge-api/internal/service"
	"github.com/planforge/planforge-api/internal/service/auth"
	"github.com/planforge/planforge-api/internal/store"
	"github.com/planforge/planforge-api/internal/worker"
)

// application holds the wired dependencies of the running server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	redisClient *redis.Client
	jwtService  auth.JWTService
	planService service.PlanService
	worker      *worker.Worker
}

// newApplication loads configuration and wires every component: database
// and migrations, redis, the LLM generator, stores, the orchestrator, the
// queue worker and the service layer.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, appLogger); err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	generator, err := gemini.NewPlanGenerator(ctx, appLogger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan generator: %w", err)
	}

	planStore := postgres.NewPostgresPlanStore(db, appLogger)
	attemptStore := postgres.NewPostgresAttemptStore(db, appLogger)
	jobStore := postgres.NewPostgresJobStore(db, appLogger)
	cacheStore := postgres.NewPostgresSearchCacheStore(db, appLogger)

	curator := setupCurator(cfg, cacheStore, appLogger)

	attemptCap := ratelimit.NewAttemptCap(attemptStore, cfg.Generation.MaxAttemptsPerPlan)

	orch := orchestrator.New(
		planStore,
		attemptStore,
		generator,
		curator,
		attemptCap,
		store.NewSQLTxRunner(db),
		orchestrator.Config{
			BaseTimeout: time.Duration(cfg.Generation.BaseTimeoutMs) * time.Millisecond,
			Extension:   time.Duration(cfg.Generation.ExtensionMs) * time.Millisecond,
		},
		appLogger,
	)

	w := worker.New(jobStore, orch, worker.Config{
		PollInterval:  time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond,
		Concurrency:   cfg.Worker.Concurrency,
		ShutdownGrace: time.Duration(cfg.Worker.ShutdownGraceMs) * time.Millisecond,
		BackoffBase:   time.Duration(cfg.Worker.BackoffBaseMs) * time.Millisecond,
	}, appLogger)

	limiter := ratelimit.NewBurstLimiter(
		redisClient,
		cfg.RateLimit.RequestsPerWindow,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
	)

	emitter := events.NewInMemoryEventEmitter(appLogger)
	emitter.RegisterHandler(worker.NewQueueNotifyHandler(w, appLogger))

	planService, err := service.NewPlanService(
		store.NewSQLTxRunner(db),
		planStore,
		jobStore,
		attemptStore,
		limiter,
		emitter,
		cfg.Worker.JobMaxAttempts,
		cfg.Generation.MaxAttemptsPerPlan,
		appLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan service: %w", err)
	}

	return &application{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		jwtService:  jwtService,
		planService: planService,
		worker:      w,
	}, nil
}

// setupCurator builds the resource curator when search endpoints are
// configured; otherwise plans are generated without attached resources.
func setupCurator(cfg *config.Config, cacheStore *postgres.PostgresSearchCacheStore, log *slog.Logger) *curation.Curator {
	if cfg.Curation.VideoSearchURL == "" || cfg.Curation.DocsSearchURL == "" {
		log.Info("curation search endpoints not configured, skipping resource curation")
		return nil
	}

	perCall := time.Duration(cfg.Curation.PerCallTimeoutMs) * time.Millisecond
	videos := curation.NewCachedSearcher(cacheStore,
		curation.NewHTTPSearcher(cfg.Curation.VideoSearchURL, perCall))
	docs := curation.NewCachedSearcher(cacheStore,
		curation.NewHTTPSearcher(cfg.Curation.DocsSearchURL, perCall))
	links := curation.NewCachedLinkValidator(cacheStore, curation.NewHTTPLinkValidator(perCall))

	return curation.NewCurator(videos, docs, links, perCall, log)
}

// run starts the worker and the HTTP server, blocking until shutdown.
func (app *application) run(ctx context.Context) error {
	if err := app.worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops the worker and closes shared connections. It is safe to
// call after a partial startup.
func (app *application) cleanup() {
	if app.worker != nil {
		app.worker.Stop()
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("failed to close redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
