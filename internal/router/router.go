package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/trip-seat-reservation/internal/config"     // middleware configuration
	"github.com/iliyamo/trip-seat-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/trip-seat-reservation/internal/middleware" // rate limiting and response caching
)

// RegisterRoutes registers the health check on the provided Echo instance.
// This endpoint can be used by load balancers or monitoring systems to
// verify that the service is up and running.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterEngine registers the reservation engine's collaborator-facing
// routes.  Mutating endpoints (order creation, payment callback, cancel)
// go through the Redis token-bucket rate limiter; the seat availability
// read goes through the Redis response cache.  Both middlewares degrade
// to pass-through when rdb is nil, so the engine works without Redis –
// just without the protection.
func RegisterEngine(e *echo.Echo, o *handler.OrderHandler, t *handler.TripHandler, rdb *redis.Client, rlCfg config.RateLimitConfig, cacheCfg config.CacheConfig) {
	limited := e.Group("/v1")
	limited.Use(middleware.NewTokenBucket(rlCfg, rdb))
	// Start checkout: hold seats and open the payment window.
	limited.POST("/orders", o.CreateOrder)
	// Payment collaborator callback; 410 signals a refund is needed.
	limited.POST("/reservations/:id/payment", o.ConfirmPayment)
	// Explicit early release of a pending hold.
	limited.DELETE("/reservations/:id", o.CancelReservation)
	// Order detail for customers and the surrounding CRUD layer.
	limited.GET("/orders/:id", o.GetOrder)

	cached := e.Group("/v1")
	cached.Use(middleware.NewRedisCache(cacheCfg, rdb))
	// Seat availability for seat pickers; short-TTL cached.
	cached.GET("/trips/:id/seats", t.GetTripSeats)
}
