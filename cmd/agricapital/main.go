package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/agricapital/agricapital/app/controllers"
	"github.com/agricapital/agricapital/internal/pkg/cache"
	"github.com/agricapital/agricapital/internal/pkg/constants"
	"github.com/agricapital/agricapital/internal/pkg/database"
	"github.com/agricapital/agricapital/internal/pkg/env"
	"github.com/agricapital/agricapital/internal/pkg/health"
	"github.com/agricapital/agricapital/internal/pkg/metrics/counter"
	"github.com/agricapital/agricapital/internal/pkg/middleware"
	"github.com/agricapital/agricapital/internal/pkg/payments"
	"github.com/agricapital/agricapital/internal/pkg/ratelimit"
	"github.com/agricapital/agricapital/internal/pkg/router"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, registry := NewApplication()
	go registry.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
	registry.Close()
}

func NewApplication() (*fiber.App, *payments.Registry) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/agricapital to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// reconciliation wiring
	cfg := payments.ConfigFromEnv()
	pollerCfg := payments.PollerConfigFromEnv()
	counters := counter.NewReconciliation(cache.GetClient())

	svc := payments.NewServiceFromDB(database.GetDB(), cfg).WithCounter(counters)
	verifiers := payments.NewVerifiers(
		payments.NewKKiaPayVerifierFromEnv(cfg),
		payments.NewFedaPayVerifierFromEnv(cfg),
	)
	registry := payments.NewRegistry(
		payments.NewReturnChecker(svc, verifiers),
		pollerCfg,
		payments.NewRedisSnapshotStore(cache.GetClient()),
	)

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     html.New(basePath+"views", ".html"),
		BodyLimit: 1 << 20, // webhook bodies are small JSON documents
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	metricsAuth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	})

	// fiber metrics
	app.Get("/metrics", metricsAuth, monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: constants.DocsRoute,
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	healthCheck := health.Handler(map[string]health.Check{
		"database": health.Database(database.GetDB),
		"cache":    cache.Ping,
	})

	// ROUTER
	router.InstallRouter(app, router.Controllers{
		Webhooks:  controllers.NewPaymentWebhookController(svc),
		Returns:   controllers.NewPaymentReturnController(registry, pollerCfg),
		Stats:     controllers.NewPaymentStatsController(counters),
		Health:    healthCheck,
		StatsAuth: middleware.APIKeyAuth(env.GetEnv("STATS_API_KEY", "")),
		Limit:     ratelimit.New("api", 120, time.Minute),
		PageLimit: ratelimit.New("return-page", 20, time.Minute),
	})

	return app, registry
}
