package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/infra/config"
	"github.com/arklim/ticket-tracker/internal/infra/database"
	kafkainfra "github.com/arklim/ticket-tracker/internal/infra/kafka"
	"github.com/arklim/ticket-tracker/internal/infra/logger"
	redisinfra "github.com/arklim/ticket-tracker/internal/infra/redis"
	"github.com/arklim/ticket-tracker/internal/infra/security"
	"github.com/arklim/ticket-tracker/internal/infra/telemetry"
	"github.com/arklim/ticket-tracker/internal/repository/memory"
	postgresrepo "github.com/arklim/ticket-tracker/internal/repository/postgres"
	redisrepo "github.com/arklim/ticket-tracker/internal/repository/redis"
	"github.com/arklim/ticket-tracker/internal/transport/http/middleware"
	"github.com/arklim/ticket-tracker/internal/transport/http/routes"
	"github.com/arklim/ticket-tracker/internal/usecase"
)

const (
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	store    *postgresrepo.Store
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	consumer *kafkainfra.ConsumerGroup
	tracer   *telemetry.TracerProvider
}

// storage is the set of ports the services are built on, whichever backend provides them.
type storage struct {
	memberships  port.MembershipRepository
	dependencies port.DependencyRepository
	projects     port.ProjectDirectory
	tickets      port.TicketReader
	users        port.UserDirectory
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			app.close(context.Background())
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		app.tracer = tp
	}

	policy, err := usecase.ParseDependencyPolicy(cfg.Policy.CycleDetection, cfg.Policy.Blocking)
	if err != nil {
		return nil, fmt.Errorf("parse dependency policy: %w", err)
	}

	verifier, err := security.NewAccessTokenVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	stores, err := app.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	var cache port.MembershipCache
	var throttleStore middleware.ThrottleStore
	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		app.redis = redisClient
		cache = redisrepo.NewMembershipCache(redisClient.Client(), cfg.Redis.MembershipPrefix, cfg.Redis.MembershipTTL)

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		throttleStore = redisrepo.NewWriteThrottleStore(redisClient.Client(), cfg.Redis.ThrottlePrefix, window*2)
	} else {
		log.Info("redis disabled, membership cache and write throttle are off")
	}

	events := app.openEvents(log)

	authzMetrics := telemetry.NewAuthzMetrics(prometheus.DefaultRegisterer, cfg.Telemetry.MetricsNamespace)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  cfg.Telemetry.MetricsNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	permissions := usecase.NewPermissionResolver(stores.projects, stores.memberships).
		WithMetrics(authzMetrics).
		WithLogger(log)
	memberships := usecase.NewMembershipService(stores.memberships, stores.projects, stores.users, events).
		WithLogger(log)
	if cache != nil {
		permissions.WithCache(cache)
		memberships.WithCache(cache)
	}
	dependencies := usecase.NewDependencyService(stores.dependencies, stores.tickets, stores.users, events).
		WithPolicy(policy).
		WithMetrics(authzMetrics).
		WithLogger(log)
	completion := usecase.NewCompletionGate(stores.tickets, permissions, dependencies)

	if cache != nil && app.cfg.Kafka.Enabled && app.cfg.Kafka.InvalidationEnabled && len(app.cfg.Kafka.Brokers) > 0 {
		consumer, err := kafkainfra.NewConsumerGroup(cfg.Kafka, kafkainfra.NewMembershipInvalidationConsumer(cache, log), log)
		if err != nil {
			log.Warn("failed to join kafka consumer group, cache invalidation relies on local eviction", zap.Error(err))
		} else {
			app.consumer = consumer
		}
	}

	deps := routes.Dependencies{
		Config: cfg,
		Logger: log,
		Services: routes.ServiceSet{
			Permissions:  permissions,
			Memberships:  memberships,
			Dependencies: dependencies,
			Completion:   completion,
		},
		Tickets:     stores.tickets,
		Verifier:    verifier,
		HTTPMetrics: httpMetrics,
	}
	if throttleStore != nil {
		deps.WriteThrottle = middleware.NewWriteThrottle(throttleStore, cfg.RateLimit.WriteMaxCalls, cfg.RateLimit.WindowDuration, log)
	}
	if app.tracer != nil {
		deps.Tracing = &middleware.TracingOptions{}
	}
	if app.store != nil {
		deps.Database = app.store
	}
	if app.redis != nil {
		deps.Cache = app.redis
	}
	app.engine = routes.Register(deps)

	log.Info("dependency policy configured",
		zap.String("cycle_detection", string(policy.CycleDetection)),
		zap.String("blocking", string(policy.Blocking)),
	)

	ok = true
	return app, nil
}

func (a *Application) openStorage(ctx context.Context) (*storage, error) {
	backend := strings.ToLower(strings.TrimSpace(a.cfg.Storage.Backend))

	switch backend {
	case "", backendPostgres:
		pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.store = postgresrepo.NewStore(pool)
		repos := postgresrepo.NewRepositories(pool)
		return &storage{
			memberships:  repos.Memberships,
			dependencies: repos.Dependencies,
			projects:     repos.Projects,
			tickets:      repos.Tickets,
			users:        repos.Users,
		}, nil

	case backendMemory:
		dir := memory.NewDirectory()
		if seed := strings.TrimSpace(a.cfg.Storage.SeedFile); seed != "" {
			if err := dir.LoadSeedFile(seed); err != nil {
				return nil, fmt.Errorf("load seed file: %w", err)
			}
			a.logger.Info("memory directory seeded", zap.String("path", seed))
		}
		a.logger.Warn("using in-memory storage, state is lost on restart")
		return &storage{
			memberships:  memory.NewMembershipStore(),
			dependencies: memory.NewDependencyStore(),
			projects:     dir,
			tickets:      dir,
			users:        dir,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *Application) openEvents(log *zap.Logger) port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	log.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, log)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancelRun()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(shutdownCtx)
		wg.Wait()
	}()

	if a.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.consumer.Run(runCtx)
		}()
		a.logger.Info("membership invalidation consumer started")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting ticket tracker API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage", a.cfg.Storage.Backend),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases every opened resource. It is safe on a partially built Application.
func (a *Application) close(ctx context.Context) {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("close kafka consumer", zap.Error(err))
		}
		a.consumer = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
}
