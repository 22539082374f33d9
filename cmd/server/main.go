package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/rutadirecta/boleteria/internal/config"
	"github.com/rutadirecta/boleteria/internal/database"
	"github.com/rutadirecta/boleteria/internal/handler"
	"github.com/rutadirecta/boleteria/internal/middleware"
	"github.com/rutadirecta/boleteria/internal/pubsub"
	"github.com/rutadirecta/boleteria/internal/queue"
	"github.com/rutadirecta/boleteria/internal/repository"
	"github.com/rutadirecta/boleteria/internal/router"
	"github.com/rutadirecta/boleteria/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: lock broadcasts and rate limiting disabled")
	}
	broadcaster := pubsub.NewBroadcaster(rdb)

	// Repositories.
	routes := repository.NewRouteRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	schedules := repository.NewScheduleRepo(db)
	assignments := repository.NewAssignmentRepo(db)
	trips := repository.NewTripRepo(db)
	tickets := repository.NewTicketRepo(db)
	seatLocks := repository.NewSeatLockRepo(db)
	operators := repository.NewOperatorRepo(db)

	// Services.
	generator := service.NewTripGenerator(assignments, schedules, routes, vehicles, trips)
	resolver := service.NewSellableResolver(schedules, assignments, trips, routes)
	locks := service.NewLockService(seatLocks, trips, vehicles, broadcaster)
	locks.DefaultTTL = cfg.SeatLockTTL
	store := service.NewBookingStore(db, trips, tickets, seatLocks, vehicles)
	bookings := service.NewBookingService(store, locks, queue.NewPublisher(), broadcaster)

	// Background workers: the paid-ticket consumer and the expired-lock
	// sweep.  Both are best effort — the API never depends on either.
	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			log.Printf("ticket consumer stopped: %v", err)
		}
	}()
	if cfg.LockSweep > 0 {
		go func() {
			ticker := time.NewTicker(cfg.LockSweep)
			defer ticker.Stop()
			for range ticker.C {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if n, err := seatLocks.SweepExpired(ctx); err != nil {
					log.Printf("lock sweep: %v", err)
				} else if n > 0 {
					log.Printf("lock sweep: removed %d expired locks", n)
				}
				cancel()
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		Auth:        handler.NewAuthHandler(cfg, operators),
		Trips:       handler.NewTripHandler(generator, resolver, trips, routes, vehicles, tickets, locks),
		SeatLocks:   handler.NewSeatLockHandler(locks, broadcaster),
		Bookings:    handler.NewBookingHandler(bookings),
		Assignments: handler.NewAssignmentHandler(assignments),
		Schedules:   handler.NewScheduleHandler(schedules),
		JWTSecret:   cfg.JWTSecret,
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
