package main // Entry point package

import (
	"context" // Context for background jobs
	"log"     // Logging library
	"time"    // Ticker for the reaper loop

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/rangefront/course-enrollment/internal/checkout"   // Checkout engine
	"github.com/rangefront/course-enrollment/internal/config"     // Internal config loader
	"github.com/rangefront/course-enrollment/internal/database"   // MySQL connector
	"github.com/rangefront/course-enrollment/internal/handler"    // HTTP handlers
	"github.com/rangefront/course-enrollment/internal/middleware" // Cache, rate limit, auth middleware
	"github.com/rangefront/course-enrollment/internal/payment"    // Payment gateway
	"github.com/rangefront/course-enrollment/internal/pricing"    // Quoter and tax
	"github.com/rangefront/course-enrollment/internal/queue"      // RabbitMQ consumer
	"github.com/rangefront/course-enrollment/internal/repository" // DB repositories
	"github.com/rangefront/course-enrollment/internal/router"     // Route registration
	queue_publisher "github.com/rangefront/course-enrollment/internal/service" // Event publisher
)

func main() {
	_ = godotenv.Load() // Load .env if present; real env wins

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName) // Open MySQL pool
	if err != nil {
		log.Fatalf("database: %v", err) // Abort when the DB is unreachable
	}
	defer db.Close() // Close pool on shutdown

	// Repositories over the shared pool.
	users := repository.NewUserRepo(db, cfg.BcryptCost)
	tokens := repository.NewTokenRepo(db)
	offerings := repository.NewOfferingRepo(db)
	reservations := repository.NewReservationRepo(db)
	waitlist := repository.NewWaitlistRepo(db)
	promos := repository.NewPromoRepo(db)
	store := repository.NewCheckoutStore(db)

	// Redis backs the response cache, the rate limiter and spot-count
	// invalidation.  A nil client disables all three.
	rdb := config.NewRedisClient()
	cacheCfg := config.LoadCacheConfig()

	var spots checkout.AvailabilityCache
	if rdb != nil {
		spots = middleware.NewAvailabilityInvalidator(rdb, cacheCfg.Prefix)
	}

	// Checkout engine with its collaborators.
	quoter := pricing.NewQuoter(promos, pricing.NewFlatRateTax(cfg.TaxRateBps))
	gateway := payment.NewSandboxGateway()
	notifier := queue_publisher.NewPublisher()
	engine := checkout.NewEngine(store, users, quoter, gateway, notifier, spots, cfg.Currency)

	e := echo.New() // Create Echo instance

	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)) // Distributed rate limiting
	}

	// Handlers and routes.
	authH := handler.NewAuthHandler(cfg, users, tokens)
	checkoutH := handler.NewCheckoutHandler(cfg, engine, reservations, tokens, users)
	catalogH := handler.NewCatalogHandler(offerings, engine)
	instructorH := handler.NewInstructorHandler(offerings, reservations, waitlist)

	router.RegisterRoutes(e)                          // Health check
	router.RegisterAuth(e, authH, cfg.JWTSecret)      // Auth endpoints
	if rdb != nil {
		router.RegisterCatalog(e, catalogH, middleware.NewRedisCache(cacheCfg, rdb)) // Cached public browse
	} else {
		router.RegisterCatalog(e, catalogH) // Uncached public browse
	}
	router.RegisterStudent(e, checkoutH, cfg.JWTSecret)      // Checkout flow
	router.RegisterInstructor(e, instructorH, cfg.JWTSecret) // Roster and waitlist views

	// Consume enrollment events in the background.  The consumer
	// reconnects on broker failures and never takes the API down.
	go func() {
		if err := queue.StartEnrollmentConsumer(); err != nil {
			log.Printf("consumer: %v", err)
		}
	}()

	// Reap abandoned pending reservations on a fixed cadence so unpaid
	// holds return to the pool.
	go func() {
		window := time.Duration(cfg.ReapWindowMin) * time.Minute
		interval := time.Duration(cfg.ReapIntervalMin) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := engine.ReapAbandoned(ctx, window)
			cancel()
			if err != nil {
				log.Printf("reaper: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reaper: released %d abandoned reservations", n)
			}
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
