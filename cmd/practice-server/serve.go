package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Fafulop/healthcare-platform-sub003/internal/config"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/accounting"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/analytics"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/scheduling"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/task"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/auth"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/events"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/lock"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/middleware"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/telemetry"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/validation"
)

const version = "0.1.0"

// services groups what the HTTP layer needs, so routing can be built without
// a live database.
type services struct {
	scheduling *scheduling.Service
	tasks      *task.Service
	accounting *accounting.Service
	analytics  *analytics.Service
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

func newServices(pool *pgxpool.Pool, cfg *config.Config, locker lock.Locker, pub events.Publisher, logger zerolog.Logger) *services {
	tasks := task.NewService(task.NewTaskRepoPG(pool), logger)
	acct := accounting.NewService(
		accounting.NewSaleRepoPG(pool),
		accounting.NewPurchaseRepoPG(pool),
		accounting.NewLedgerRepoPG(pool),
		pub, logger)
	return &services{
		scheduling: scheduling.NewService(
			scheduling.NewSlotRepoPG(pool),
			scheduling.NewBookingRepoPG(pool),
			tasks,
			db.NewTxRunner(),
			locker, pub, logger),
		tasks:      tasks,
		accounting: acct,
		analytics: analytics.NewService(
			analytics.NewCacheRepoPG(pool),
			analytics.NewStatsRepoPG(pool),
			acct, cfg.AnalyticsCacheTTL, logger),
	}
}

// apiMiddleware is the per-request chain for /api: authentication, tenant
// scoping, auditing and rate limiting, in that order.
type apiMiddleware struct {
	auth    echo.MiddlewareFunc
	tenant  echo.MiddlewareFunc
	audit   echo.MiddlewareFunc
	limiter echo.MiddlewareFunc
}

func newEcho(cfg *config.Config, logger zerolog.Logger, svcs *services, mw apiMiddleware, health echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID",
			auth.DevRoleHeader, auth.DevDoctorIDHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.Secure())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	if health != nil {
		e.GET("/health/db", health)
	}

	api := e.Group("/api")
	for _, m := range []echo.MiddlewareFunc{mw.auth, mw.tenant, mw.audit, mw.limiter} {
		if m != nil {
			api.Use(m)
		}
	}

	for _, r := range []routeRegistrar{
		scheduling.NewHandler(svcs.scheduling),
		task.NewHandler(svcs.tasks),
		accounting.NewHandler(svcs.accounting),
		analytics.NewHandler(svcs.analytics),
	} {
		r.RegisterRoutes(api)
	}
	return e
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware()
	}
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jc)
}

// rateLimiter shares limits through Redis when it is configured and keeps
// them in process otherwise.
func rateLimiter(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) echo.MiddlewareFunc {
	rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	if rdb == nil {
		return middleware.RateLimit(rl)
	}
	perMinute := int(math.Ceil(rl.RequestsPerSecond * 60))
	return middleware.RateLimitWith(middleware.NewRedisLimiter(rdb, perMinute, time.Minute, "practice:rl"), logger)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    "practice-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var (
		rdb    *redis.Client
		locker lock.Locker = lock.Nop{}
		deps   []db.Dependency
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.SlotLockTTL, 2*time.Second, logger)
		deps = append(deps, db.Dependency{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info().Msg("redis enabled for slot locks and rate limiting")
	} else {
		logger.Warn().Msg("REDIS_URL not set, slot creation relies on the database constraint only")
	}

	pub := events.New(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
	defer pub.Close()

	e := newEcho(cfg, logger, newServices(pool, cfg, locker, pub, logger), apiMiddleware{
		auth:    authMiddleware(cfg),
		tenant:  db.TenantMiddleware(pool, cfg.DefaultTenant),
		audit:   middleware.Audit(logger),
		limiter: rateLimiter(cfg, rdb, logger),
	}, db.HealthHandler(pool, deps...))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("trace flush failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
