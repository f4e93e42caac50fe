package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-reservation/internal/config"
	"github.com/iliyamo/dining-reservation/internal/database"
	"github.com/iliyamo/dining-reservation/internal/handler"
	"github.com/iliyamo/dining-reservation/internal/lock"
	"github.com/iliyamo/dining-reservation/internal/middleware"
	"github.com/iliyamo/dining-reservation/internal/queue"
	"github.com/iliyamo/dining-reservation/internal/repository"
	"github.com/iliyamo/dining-reservation/internal/router"
	"github.com/iliyamo/dining-reservation/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("env: no .env file loaded, using environment variables")
	}
	cfg := config.Load()

	// Record store: MySQL unless STORE_DRIVER=memory
	var (
		store repository.Store
		db    *sql.DB
	)
	if cfg.MemoryStore() {
		log.Printf("store: keeping records in memory")
		store = repository.NewMemoryStore()
	} else {
		var err error
		db, err = database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			log.Fatalf("db: open failed: %v", err)
		}
		defer db.Close()
		if cfg.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := database.Migrate(ctx, db)
			cancel()
			if err != nil {
				log.Fatalf("db: migrate failed: %v", err)
			}
		}
		store = repository.NewSQLStore(db)
	}

	// Redis is optional: without it locks are process-local and the cache
	// and rate limiter are off.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	var locker lock.Locker
	if rdb != nil {
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "dining:lock", cfg.LockTTL, cfg.LockWait)
	} else {
		log.Printf("redis: unavailable; using in-process locks, cache and rate limit disabled")
		locker = lock.NewLocal(cfg.LockWait)
	}

	var events service.Publisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		events = service.AMQPPublisher{URL: cfg.AMQPURL}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.EventsConsumerEnabled {
		go func() {
			c := queue.Consumer{URL: cfg.AMQPURL, Dir: "logs"}
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("reservation-consumer: stopped: %v", err)
			}
		}()
	}

	reservations := service.NewReservationService(store, locker, events)
	catalog := service.NewCatalogService(store)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog())

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, pinger)

	v1 := e.Group("/v1")
	v1.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	v1.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterCatalog(v1, handler.NewCatalogHandler(catalog))
	router.RegisterReservations(v1, handler.NewReservationHandler(reservations))

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: forced shutdown: %v", err)
	}
}
