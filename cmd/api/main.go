package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ss-345/sweet-shop/internal/api"
	"github.com/ss-345/sweet-shop/internal/api/handler"
	"github.com/ss-345/sweet-shop/internal/core/ports"
	"github.com/ss-345/sweet-shop/internal/core/service"
	"github.com/ss-345/sweet-shop/internal/infrastructure/config"
	"github.com/ss-345/sweet-shop/internal/infrastructure/db/memory"
	"github.com/ss-345/sweet-shop/internal/infrastructure/db/mongo"
	"github.com/ss-345/sweet-shop/internal/infrastructure/db/redis"
	"github.com/ss-345/sweet-shop/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "sweet-shop",
	})
	log.Info().
		Str("env", cfg.Env).
		Str("store", cfg.StoreDriver).
		Msg("starting sweet shop api")

	if cfg.UsesDevSecret() {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	ctx := context.Background()

	var (
		users   ports.UserRepository
		sweets  ports.SweetRepository
		checks  []handler.ReadinessCheck
		closers []func(context.Context) error
	)

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Mongo.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("connect to mongodb")
		}
		closers = append(closers, client.Disconnect)

		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("create mongodb indexes")
		}
		users = mongo.NewUserRepository(db)
		sweets = mongo.NewSweetRepository(db)
		checks = append(checks, handler.ReadinessCheck{
			Name:  "mongodb",
			Check: func(ctx context.Context) error { return client.Ping(ctx, nil) },
		})
	default:
		log.Warn().Msg("using in-memory stores, data is lost on restart")
		users = memory.NewUserRepository()
		sweets = memory.NewSweetRepository()
	}

	var idem service.IdempotencyStore
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("connect to redis")
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })

		idem = redis.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		checks = append(checks, redisCheck(rdb))
	} else {
		log.Info().Msg("REDIS_ADDR not set, idempotency keys disabled")
	}

	authService := service.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL,
		service.WithBcryptCost(cfg.Auth.BcryptCost),
		service.WithLogger(log.With().Str("component", "auth").Logger()),
	)
	sweetService := service.NewSweetService(sweets, idem, log.With().Str("component", "inventory").Logger())

	e := api.NewRouter(api.RouterConfig{
		AuthService:     authService,
		SweetService:    sweetService,
		Logger:          log,
		ReadinessChecks: checks,
		AuthRateLimit:   cfg.HTTP.AuthRateLimit,
		AuthRateBurst:   cfg.HTTP.AuthRateBurst,
		CORSOrigins:     cfg.HTTP.CORSAllowOrigins,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	closeAll(shutdownCtx, log, closers)

	log.Info().Msg("sweet shop api stopped")
}

func redisCheck(rdb *goredis.Client) handler.ReadinessCheck {
	return handler.ReadinessCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
}

// closeAll releases store handles in reverse order of acquisition.
func closeAll(ctx context.Context, log zerolog.Logger, closers []func(context.Context) error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}
}

