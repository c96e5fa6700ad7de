package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/ss-345/sweet-shop/internal/api/handler"
	"github.com/ss-345/sweet-shop/internal/api/metrics"
	"github.com/ss-345/sweet-shop/internal/api/middleware"
	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"

	_ "github.com/ss-345/sweet-shop/docs"
)

// maxBodySize caps request bodies. Every payload is a handful of fields.
const maxBodySize = "64K"

// RouterConfig carries the dependencies of the HTTP layer.
type RouterConfig struct {
	AuthService  ports.AuthService
	SweetService ports.SweetService
	Logger       zerolog.Logger

	ReadinessChecks []handler.ReadinessCheck

	// AuthRateLimit is the sustained requests/second allowed per client IP on
	// /auth/register and /auth/login. Zero disables limiting.
	AuthRateLimit float64
	AuthRateBurst int

	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(maxBodySize))
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(cfg.Logger))
	e.Use(metrics.Middleware())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
				echo.HeaderAuthorization, handler.HeaderIdempotencyKey,
			},
		}))
	}

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	sweetHandler := handler.NewSweetHandler(cfg.SweetService)
	healthHandler := handler.NewHealthHandler(cfg.ReadinessChecks...)

	authenticate := middleware.Authenticate(cfg.AuthService)
	anyUser := middleware.Authorize(cfg.AuthService)
	adminOnly := middleware.Authorize(cfg.AuthService, domain.RoleAdmin)

	// --- Auth routes ---
	auth := e.Group("/auth")
	limited := auth.Group("")
	if cfg.AuthRateLimit > 0 {
		limited.Use(authRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst))
	}
	limited.POST("/register", authHandler.Register)
	limited.POST("/login", authHandler.Login)
	auth.GET("/me", authHandler.Me, authenticate)

	// --- Inventory routes ---
	sweets := e.Group("/sweets")
	sweets.GET("", sweetHandler.List)
	sweets.GET("/search", sweetHandler.Search)
	sweets.GET("/:id", sweetHandler.Get)
	sweets.POST("", sweetHandler.Create, authenticate, adminOnly)
	sweets.PUT("/:id", sweetHandler.Update, authenticate, adminOnly)
	sweets.DELETE("/:id", sweetHandler.Delete, authenticate, adminOnly)
	sweets.POST("/:id/purchase", sweetHandler.Purchase, authenticate, anyUser)
	sweets.POST("/:id/restock", sweetHandler.Restock, authenticate, adminOnly)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	// --- Operations ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func authRateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	if burst <= 0 {
		burst = 1
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiter(store)
}

// requestLogger writes one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			} else if v.Status >= 400 {
				ev = log.Warn()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
