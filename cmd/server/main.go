package main // Entry point package

import (
	"context"
	"log"       // Logging library
	"os/signal" // Signal handling for graceful shutdown of background loops
	"syscall"

	"github.com/joho/godotenv"    // Loads .env files for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/trip-seat-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/trip-seat-reservation/internal/database"   // MySQL connection helper
	"github.com/iliyamo/trip-seat-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/trip-seat-reservation/internal/queue"      // Broker publisher and ops consumer
	"github.com/iliyamo/trip-seat-reservation/internal/repository" // Data access layer
	"github.com/iliyamo/trip-seat-reservation/internal/router"     // Route registration
	"github.com/iliyamo/trip-seat-reservation/internal/scheduler"  // Expiry task poller
	"github.com/iliyamo/trip-seat-reservation/internal/service"    // Order lifecycle controller and cleanup worker
)

func main() {
	_ = godotenv.Load() // Load .env if present; real env vars take precedence
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories: the seat ledger, reservation store, order store and
	// the durable expiry task store all share the one MySQL handle.
	tripRepo := repository.NewTripRepo(db)
	tripSeatRepo := repository.NewTripSeatRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	taskRepo := repository.NewTaskRepo(db)

	publisher := queue.NewPublisher(queue.BrokerURL())

	orderService := service.NewOrderService(
		tripSeatRepo, reservationRepo, orderRepo, taskRepo, publisher, cfg.PaymentWindow,
	)
	cleanupWorker := service.NewCleanupWorker(reservationRepo, tripSeatRepo, publisher)

	poller := scheduler.NewPoller(taskRepo, cleanupWorker, publisher, scheduler.Config{
		Interval:    cfg.CleanupPoll,
		RetryBase:   cfg.CleanupRetryBase,
		MaxAttempts: cfg.CleanupMaxRetries,
		BatchSize:   cfg.CleanupBatchSize,
		StaleAfter:  cfg.CleanupStaleAfter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go poller.Run(ctx)

	// Background consumer appending dead-task alerts to logs/cleanup.log.
	go func() {
		if err := queue.StartCleanupAlertConsumer(); err != nil {
			log.Printf("cleanup consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e) // Register health check

	rdb := config.NewRedisClient() // May be nil; middleware degrades gracefully
	orderHandler := handler.NewOrderHandler(orderService)
	tripHandler := handler.NewTripHandler(tripRepo, tripSeatRepo)
	router.RegisterEngine(e, orderHandler, tripHandler, rdb, config.LoadRateLimitConfig(), config.LoadCacheConfig())

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
