package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/app/controllers"
	"github.com/ManuelReschke/MetricsFox/app/repository"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/billing"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/cache"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/catalog"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/database"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/logging"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/router"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/snapshot"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/statistics"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/viewmodel"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/warmer"
)

func main() {
	app, shutdown, err := NewApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdown()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

// NewApplication wires every component. The returned func stops background work.
func NewApplication() (*fiber.App, func(), error) {
	env.SetupEnvFile()
	format := "json"
	if env.IsDev() {
		format = "console"
	}
	logging.Init(logging.Config{
		Format:    env.GetEnv("LOG_FORMAT", format),
		Level:     env.GetEnv("LOG_LEVEL", "info"),
		Component: "metricsfox",
	})

	cat, err := catalog.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load product catalog: %w", err)
	}
	fetcher, err := billing.NewFetcherFromEnv(cat)
	if err != nil {
		return nil, nil, fmt.Errorf("billing client: %w", err)
	}
	snapshots := snapshot.NewFromEnv(fetcher)

	checks := map[string]controllers.HealthCheck{}
	cacheCfg := cache.ConfigFromEnv()
	if cache.SetupCache(cacheCfg) != nil {
		checks["cache"] = cache.Ping
	}

	var takeRates statistics.TakeRateSource
	if dbCfg := database.ConfigFromEnv(); dbCfg.Enabled() {
		db, err := database.SetupDatabase(dbCfg)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, take rate history disabled")
		} else {
			takeRates = repository.NewFactory(db).GetTakeRateRepository()
			checks["database"] = func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}
		}
	}

	service := statistics.NewService(cat, snapshots, fetcher, takeRates)

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/metricsfox to project root
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
		return nil, nil, fmt.Errorf("could not find project root directory")
	}

	engine := html.New(basePath+"views", ".html")
	engine.AddFuncMap(viewmodel.Funcs())

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:        engine,
		AppName:      "MetricsFox " + constants.Version,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: constants.DocsBasePath,
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     constants.DocsVersion,
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Service:        service,
		Snapshots:      snapshots,
		HealthChecks:   checks,
		LimiterStorage: cache.LimiterStorage(cacheCfg),
		RateLimit:      env.GetEnvInt("API_RATE_LIMIT", 60),
		AdminAPIKey:    env.GetEnv("ADMIN_API_KEY", ""),
		MonitorUser:    env.GetEnv("MONITOR_USER", ""),
		MonitorPass:    env.GetEnv("MONITOR_PASSWORD", ""),
	})

	w := warmer.NewFromEnv(snapshots)
	if err := w.Start(); err != nil {
		return nil, nil, err
	}
	if env.GetEnvBool("WARM_ON_START", true) {
		go w.Warm()
	}

	shutdown := func() {
		<-w.Stop().Done()
	}
	return app, shutdown, nil
}
