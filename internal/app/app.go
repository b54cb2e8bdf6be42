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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/pointledger/internal/config"
	handler "github.com/utafrali/pointledger/internal/handler/http"
	"github.com/utafrali/pointledger/internal/repository"
	"github.com/utafrali/pointledger/internal/repository/memory"
	"github.com/utafrali/pointledger/internal/repository/postgres"
	"github.com/utafrali/pointledger/internal/service"
	"github.com/utafrali/pointledger/migrations"
	"github.com/utafrali/pointledger/pkg/database"
	"github.com/utafrali/pointledger/pkg/health"
	"github.com/utafrali/pointledger/pkg/idempotency"
	"github.com/utafrali/pointledger/pkg/middleware"
	"github.com/utafrali/pointledger/pkg/tracing"
)

const (
	// rateLimiterTTL is how long an idle client's bucket is kept.
	rateLimiterTTL = 10 * time.Minute
	// idempotencySweepInterval is how often expired in-process keys are evicted.
	idempotencySweepInterval = time.Minute
)

// App wires together all dependencies and runs the ledger server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	limiter        *middleware.RateLimiter
	idemMemory     *idempotency.MemoryStore
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}

	idem, err := a.openIdempotencyStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Build the dependency graph.
	ledger := service.NewLedger(store, cfg.PointPrice, service.NewMetrics(reg), logger)
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimiterTTL)

	router := handler.NewRouter(handler.RouterConfig{
		Ledger:         ledger,
		Health:         healthHandler,
		Authenticator:  middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		RateLimiter:    a.limiter,
		Idempotency:    idem,
		IdempotencyTTL: cfg.IdempotencyTTL(),
		Metrics:        middleware.NewHTTPMetrics(reg),
		Gatherer:       reg,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		Logger:         logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// openStore selects the ledger store named by STORAGE_DRIVER.
func (a *App) openStore(ctx context.Context, reg prometheus.Registerer, hh *health.Handler) (repository.Store, error) {
	if a.cfg.StorageDriver != config.StoragePostgres {
		store := memory.New(a.cfg.TreasuryOwner)
		hh.Register("store", store.Ping)
		a.logger.Warn("using in-memory ledger store, state is lost on restart")
		return store, nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(reg, pool, "pointledger"); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	// Configure slow query logging.
	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	store := postgres.New(pool)
	if err := store.EnsureTreasury(ctx, a.cfg.TreasuryOwner); err != nil {
		return nil, fmt.Errorf("ensure treasury: %w", err)
	}
	hh.Register("postgres", pool.Ping)
	return store, nil
}

// openIdempotencyStore selects the Idempotency-Key backend.
func (a *App) openIdempotencyStore(ctx context.Context, hh *health.Handler) (idempotency.Store, error) {
	if a.cfg.IdempotencyBackend != config.IdempotencyRedis {
		a.idemMemory = idempotency.NewMemoryStore(idempotencySweepInterval)
		return a.idemMemory, nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))

	hh.Register("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return idempotency.NewRedisStore(client, ""), nil
}

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

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
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown drains in-flight HTTP requests, then flushes spans and closes
// the store and cache connections.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}
	if a.limiter != nil {
		a.limiter.Close()
		a.limiter = nil
	}
	if a.idemMemory != nil {
		a.idemMemory.Close()
		a.idemMemory = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errors.Join(errs...)
}
