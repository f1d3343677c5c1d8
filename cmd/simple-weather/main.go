package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/simple-weather/simple-weather/internal/api/http"
	"github.com/simple-weather/simple-weather/internal/config"
	"github.com/simple-weather/simple-weather/internal/scheduler"
	"github.com/simple-weather/simple-weather/internal/store"
	"github.com/simple-weather/simple-weather/internal/weather"
	"github.com/simple-weather/simple-weather/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Durable observation store; init failure is fatal, nothing else works
	// without the table.
	sqlStore := store.NewSQLiteStore(cfg.DBPath)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	if err := sqlStore.Init(initCtx); err != nil {
		cancelInit()
		log.Fatalf("failed to init store: %v", err)
	}
	cancelInit()

	if cfg.APIKey == "" {
		log.Println("WARN: OPENWEATHER_API_KEY is not configured; collection ticks will be no-ops")
	}

	// Provider client behind a per-interval memo cache, so repeated ticks
	// inside one interval hit the provider at most once per city.
	httpClient := &http.Client{Timeout: providers.DefaultTimeout}
	fetcher := providers.NewOpenWeatherClient(httpClient, cfg.APIKey)
	cached := weather.NewCachedFetcher(fetcher, cfg.Interval)

	collector := weather.NewCollector(cached, sqlStore)
	view := weather.NewLatestView(sqlStore, cfg.Interval)

	sched := scheduler.New(cfg.Cities, cfg.Interval, collector, view)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "simple-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "simple-weather",
		})
	})

	httpapi.RegisterRoutes(app, &httpapi.Service{
		Collector: collector,
		View:      view,
		Store:     sqlStore,
		Cache:     cached,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
