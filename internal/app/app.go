package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mahmudulhsn/shopping-cart/internal/cart"
	"github.com/mahmudulhsn/shopping-cart/internal/config"
	"github.com/mahmudulhsn/shopping-cart/internal/event"
	handler "github.com/mahmudulhsn/shopping-cart/internal/handler/http"
	"github.com/mahmudulhsn/shopping-cart/internal/service"
	"github.com/mahmudulhsn/shopping-cart/internal/session"
	"github.com/mahmudulhsn/shopping-cart/internal/session/memory"
	pgsession "github.com/mahmudulhsn/shopping-cart/internal/session/postgres"
	redissession "github.com/mahmudulhsn/shopping-cart/internal/session/redis"
	"github.com/mahmudulhsn/shopping-cart/migrations"
	"github.com/mahmudulhsn/shopping-cart/pkg/database"
	"github.com/mahmudulhsn/shopping-cart/pkg/health"
	pkgkafka "github.com/mahmudulhsn/shopping-cart/pkg/kafka"
	"github.com/mahmudulhsn/shopping-cart/pkg/middleware"
	"github.com/mahmudulhsn/shopping-cart/pkg/tracing"
)

const (
	slowQueryThreshold = 200 * time.Millisecond
	purgeInterval      = time.Hour
	logoutDedupTTL     = 24 * time.Hour
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	purger         *pgsession.Backend
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	backend, err := a.openBackend(ctx, healthHandler)
	if err != nil {
		a.closeStores()
		return nil, err
	}
	logger.Info("session backend ready", slog.String("backend", backend.Name()))

	// Initialize Kafka producer.
	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	healthHandler.RegisterNonCritical("kafka", a.producer.Ping)

	// Build the dependency graph.
	factory := cart.NewFactory(
		session.Instrument(backend),
		cart.RootSessionKey(cfg.AppName),
		cart.WithIdentityFields(cfg.CartIdentityFields()...),
	)
	eventProducer := event.NewProducer(a.producer, logger)
	cartService := service.NewCartService(factory, eventProducer, logger, cfg.DestroyOnLogout)

	if cfg.DestroyOnLogout {
		a.consumers = append(a.consumers, a.logoutConsumer(cartService))
	}

	// Tax is not applied to totals; the rate is surfaced for downstream pricing.
	logger.Info("cart settings",
		slog.String("app_name", cfg.AppName),
		slog.Float64("tax_rate", cfg.TaxRate),
		slog.Int("ttl_hours", cfg.CartTTL),
		slog.Bool("destroy_on_logout", cfg.DestroyOnLogout),
		slog.Any("identity_fields", cfg.IdentityFields),
	)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(cartService, healthHandler, logger, handler.RouterConfig{
		ServiceName: cfg.ServiceName,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		CORS:        cors,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openBackend connects the session store selected by STORAGE_TYPE and
// registers its health check.
func (a *App) openBackend(ctx context.Context, hh *health.Handler) (session.Backend, error) {
	cfg := a.cfg

	switch cfg.StorageType {
	case config.StorageMemory:
		a.logger.Warn("using in-memory session storage, carts are lost on restart")
		return memory.New(), nil

	case config.StorageDatabase:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.Int("port", pgCfg.Port),
			slog.String("database", pgCfg.DBName),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		database.SetSlowQueryLogging(slowQueryThreshold, a.logger)

		hh.RegisterCritical("postgres", pool.Ping)
		backend := pgsession.New(pool)
		if cfg.CartTTL > 0 {
			a.purger = backend
		}
		return backend, nil

	default:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)

		backend := redissession.New(rdb, cfg.CartTTLDuration())
		hh.RegisterCritical("redis", backend.Ping)
		return backend, nil
	}
}

// logoutConsumer builds the user.logged_out consumer. Redelivered events are
// skipped using Redis when it is available and process memory otherwise.
func (a *App) logoutConsumer(svc *service.CartService) *pkgkafka.Consumer {
	var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(logoutDedupTTL)
	if a.rdb != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.rdb, "cart:logout:processed:", logoutDedupTTL)
	}

	h := pkgkafka.IdempotentHandler(store, event.NewLogoutHandler(svc, a.logger), a.logger)
	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaGroupID,
		Topic:    event.TopicUserLoggedOut,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, h, a.logger)
}

// Run starts the HTTP server, Kafka consumers and the idle-cart purger, then
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start Kafka consumers.
	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	if a.purger != nil {
		go a.purgeIdleCarts(ctx)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// purgeIdleCarts deletes database sessions untouched for longer than the
// cart TTL. Redis expires keys on its own.
func (a *App) purgeIdleCarts(ctx context.Context) {
	ttl := a.cfg.CartTTLDuration()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.purger.PurgeIdle(ctx, time.Now().Add(-ttl))
			if err != nil {
				a.logger.Error("purge idle carts failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("purged idle carts", slog.Int64("rows", n))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Close Kafka consumers.
	for _, consumer := range a.consumers {
		if err := consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}

	// Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	a.closeStores()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeStores() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
