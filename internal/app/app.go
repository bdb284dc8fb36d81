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

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/config"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/event"
	handler "github.com/MetallVersion/foodstuffs-rating-backend/internal/handler/http"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/password"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/ratelimit"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/repository/postgres"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/service"
	"github.com/MetallVersion/foodstuffs-rating-backend/migrations"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/database"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/health"
	pkgkafka "github.com/MetallVersion/foodstuffs-rating-backend/pkg/kafka"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/middleware"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/tracing"
)

// Version is reported to the tracer and set at build time.
var Version = "0.1.0"

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, cfg.Tracing(Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Initialize Redis for password grant throttling.
	a.redis, err = database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Initialize the event publisher.
	var publisher event.Publisher = event.DiscardPublisher{Logger: logger}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Metrics registry.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := database.RegisterPoolMetrics(registry, a.pool, cfg.ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	router, err := a.buildRouter(registry, publisher)
	if err != nil {
		return nil, err
	}

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// buildRouter builds the dependency graph behind the HTTP routes.
func (a *App) buildRouter(registry *prometheus.Registry, publisher event.Publisher) (http.Handler, error) {
	cfg := a.cfg

	signer, err := auth.NewJWTSigner(auth.SignerConfig{
		Secret:           cfg.JWTSecret,
		Issuer:           cfg.JWTIssuer,
		Audience:         cfg.JWTAudience,
		TTL:              cfg.AccessTokenTTL,
		AllowShortSecret: cfg.IsDevelopment(),
	})
	if err != nil {
		return nil, fmt.Errorf("create jwt signer: %w", err)
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}
	policy := password.NewPolicy(password.PolicyOptions{
		MinLength:              cfg.PasswordMinLength,
		MaxLength:              cfg.PasswordMaxLength,
		RequireDigit:           cfg.PasswordRequireDigit,
		RequireLowercase:       cfg.PasswordRequireLowercase,
		RequireUppercase:       cfg.PasswordRequireUppercase,
		RequireNonAlphanumeric: cfg.PasswordRequireNonAlphanumeric,
		RequiredUniqueChars:    cfg.PasswordRequiredUniqueChars,
	})

	userRepo := postgres.NewUserRepository(a.pool)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(a.pool)
	externalLoginRepo := postgres.NewExternalLoginRepository(a.pool)
	txManager := postgres.NewTxManager(a.pool)

	metrics := service.NewMetrics(registry)
	events := event.NewProducer(publisher, a.logger)
	limiter := ratelimit.NewLimiter(a.redis, cfg.LoginMaxAttempts, cfg.LoginWindow, a.logger)

	accessTokens := service.NewAccessTokenService(signer)
	refreshTokens := service.NewRefreshTokenService(refreshTokenRepo, auth.NewRefreshTokenGenerator(), cfg.RefreshTokenTTL)
	registration := service.NewRegistrationService(userRepo, hasher, policy, events, metrics, a.logger)
	federated := service.NewFederatedLoginService(userRepo, externalLoginRepo, txManager, events, a.logger)
	userTokens := service.NewUserTokenService(userRepo, accessTokens, refreshTokens, txManager, registration, limiter, events, metrics, a.logger)
	profiles := service.NewProfileService(userRepo)

	var external *handler.ExternalLoginHandler
	if cfg.GoogleEnabled() {
		keys, err := cfg.GooglePublicKeys()
		if err != nil {
			return nil, err
		}
		verifier, err := auth.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleIssuers, keys)
		if err != nil {
			return nil, fmt.Errorf("create google verifier: %w", err)
		}
		external = handler.NewExternalLoginHandler(verifier, federated, userTokens, a.logger)
		a.logger.Info("google sign-in enabled", slog.String("client_id", cfg.GoogleClientID))
	}

	// Health checks.
	healthHandler := health.NewHandler(2 * time.Second)
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	return handler.NewRouter(handler.RouterConfig{
		ServiceName:  cfg.ServiceName,
		Auth:         handler.NewAuthHandler(userTokens, registration, a.logger),
		User:         handler.NewUserHandler(profiles, refreshTokens, a.logger),
		External:     external,
		AccessTokens: accessTokens,
		Health:       healthHandler,
		HTTPMetrics:  middleware.NewHTTPMetrics(registry, cfg.ServiceName),
		Gatherer:     registry,
		CORS:         corsCfg,
		Logger:       a.logger,
	}), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
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
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
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

// closeResources releases everything NewApp opened. Unset fields are skipped.
func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
