package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/brightpath/brightpath-api/config"
	"github.com/brightpath/brightpath-api/internal/database/postgres"
	"github.com/brightpath/brightpath-api/internal/handlers"
	"github.com/brightpath/brightpath-api/internal/middleware"
	"github.com/brightpath/brightpath-api/internal/repository"
	"github.com/brightpath/brightpath-api/internal/services"
	"github.com/brightpath/brightpath-api/pkg/db"
	"github.com/brightpath/brightpath-api/pkg/highlevel"
	"github.com/brightpath/brightpath-api/pkg/httpclient"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	"github.com/brightpath/brightpath-api/pkg/profiling"
	"github.com/brightpath/brightpath-api/pkg/ratelimit"
	"github.com/brightpath/brightpath-api/pkg/retry"
	"github.com/brightpath/brightpath-api/pkg/tracing"
	"github.com/brightpath/brightpath-api/pkg/trigger"
	"github.com/brightpath/brightpath-api/pkg/turnstile"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	contactBodyLimit  = 100 * 1024
	testFormBodyLimit = 16 * 1024
	userAgent         = "brightpath-api/1.0"
)

// registerAPIRoutes registers the public API routes on group
func registerAPIRoutes(
	group *gin.RouterGroup,
	cfg *config.Config,
	defaultRateLimiter *middleware.RateLimiter,
	contactHandler *handlers.ContactHandler,
	testFormHandler *handlers.TestFormHandler,
	healthHandler *handlers.HealthHandler,
) {
	// The contact pipeline applies its own rate limit stage
	group.POST("/contact-us", middleware.BodySizeLimitMiddleware(contactBodyLimit), contactHandler.ContactUs)

	if cfg.TestFormEnabled() {
		group.POST("/test-form", defaultRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(testFormBodyLimit), testFormHandler.Submit)
	} else {
		logger.Info("Test form route disabled")
	}

	group.GET("/healthcheck", healthHandler.Healthcheck)
	group.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}

// newRateLimitStore builds the configured store. The returned health check is
// nil for the in-process store.
func newRateLimitStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, handlers.HealthCheck, func()) {
	if cfg.RateLimit.Store == config.RateLimitStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := ratelimit.NewRedisStore(client, cfg.Redis.KeyPrefix)

		err := retry.Do(ctx, retry.StartupConfig(), "redis.ping", func() error {
			return store.Ping(ctx)
		})
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		logger.Info("Rate limit store: redis", zap.String("addr", cfg.Redis.Addr))

		return store, store.Ping, func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Error("Failed to close Redis client", zap.Error(closeErr))
			}
		}
	}

	store := ratelimit.NewMemoryStore(cfg.RateLimit.SweepInterval())
	go store.Run(ctx)
	logger.Info("Rate limit store: memory", zap.Duration("sweep_interval", cfg.RateLimit.SweepInterval()))
	return store, nil, func() {}
}

// newLeadArchive connects the optional lead archive. When disabled the archive
// is a nil interface, never a typed nil.
func newLeadArchive(ctx context.Context, cfg *config.Config) (repository.LeadArchive, *pgxpool.Pool) {
	if !cfg.Database.Enabled() {
		logger.Warn("Lead archive disabled: DATABASE_URL not set")
		return nil, nil
	}

	pool, err := retry.DoWithResult(ctx, retry.StartupConfig(), "postgres.connect", func() (*pgxpool.Pool, error) {
		return db.NewPool(ctx, db.PoolConfig{
			URL:        cfg.Database.URL,
			MaxConns:   cfg.Database.MaxConns,
			MinConns:   cfg.Database.MinConns,
			CACertPath: cfg.Database.CACertPath,
		})
	})
	if err != nil {
		logger.Fatal("Failed to initialize database connection pool", zap.Error(err))
	}

	return postgres.NewClient(pool), pool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting BrightPath API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	tracerShutdown, err := tracing.InitTracer(cfg.Observability, cfg.Server.AppEnv)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	stopProfiler, err := profiling.InitProfiler(cfg.Profiling, cfg.Observability, cfg.Server.AppEnv)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	// Cancelled on shutdown; stops the sweeper and metrics collection
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	metrics.RecordInfrastructureMetrics(appCtx)

	store, storeCheck, closeStore := newRateLimitStore(appCtx, cfg)
	defer closeStore()
	limiter := ratelimit.NewLimiter(store)

	healthChecks := map[string]handlers.HealthCheck{}
	if storeCheck != nil {
		healthChecks["redis"] = storeCheck
	}

	archive, pool := newLeadArchive(appCtx, cfg)
	if pool != nil {
		defer pool.Close()
		healthChecks["database"] = pool.Ping
	}

	httpClient := httpclient.NewStandardClient(30*time.Second, userAgent)

	verifier := turnstile.NewVerifier(cfg.Turnstile.SecretKey, httpClient,
		turnstile.WithVerifyURL(cfg.Turnstile.VerifyURL),
		turnstile.WithTimeout(time.Duration(cfg.Turnstile.TimeoutSeconds)*time.Second),
	)
	if cfg.Turnstile.SecretKey == "" {
		logger.Warn("TURNSTILE_SECRET_KEY not set: contact submissions will fail with a configuration error")
	}

	crm := highlevel.NewClient(highlevel.Config{
		Token:             cfg.HighLevel.PITToken,
		BaseURL:           cfg.HighLevel.BaseURL,
		APIVersion:        cfg.HighLevel.APIVersion,
		Timeout:           time.Duration(cfg.HighLevel.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.HighLevel.RequestsPerSecond,
		Burst:             cfg.HighLevel.Burst,
	}, httpClient)
	if missing := cfg.HighLevel.MissingSetting(); missing != "" {
		logger.Warn("CRM sink not configured: contact submissions will fail", zap.String("missing", missing))
	}

	dispatcher := trigger.NewDispatcher(httpClient, trigger.DefaultTaskTimeout)

	leadRepo := repository.NewLeadRepository(archive)
	var leads services.LeadRecorder
	if leadRepo.Enabled() {
		leads = leadRepo
	}
	contactService := services.NewContactService(limiter, verifier, crm, leads, dispatcher, cfg)

	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatal("Failed to register validators", zap.Error(err))
	}

	contactHandler := handlers.NewContactHandler(contactService)
	testFormHandler := handlers.NewTestFormHandler(contactService)
	healthHandler := handlers.NewHealthHandler(healthChecks)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))

	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "traceparent", "tracestate"},
		ExposeHeaders: []string{
			"Content-Length",
			ratelimit.HeaderLimit,
			ratelimit.HeaderRemaining,
			ratelimit.HeaderReset,
			ratelimit.HeaderRetryAfter,
		},
		MaxAge: 12 * time.Hour,
	}))

	defaultPolicy := ratelimit.Policy{
		Name:         "default",
		MaxRequests:  cfg.RateLimit.DefaultMaxRequests,
		Window:       cfg.RateLimit.DefaultWindow(),
		ErrorMessage: cfg.RateLimit.ErrorMessage,
	}
	defaultRateLimiter := middleware.NewRateLimiter(limiter, defaultPolicy)

	registerAPIRoutes(router.Group("/api"), cfg, defaultRateLimiter, contactHandler, testFormHandler, healthHandler)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopApp()

	if err := dispatcher.Wait(ctx); err != nil {
		logger.Warn("Background tasks did not finish before shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
