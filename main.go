package main

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"zapflow/config"
	"zapflow/middleware"
	"zapflow/routes"
	"zapflow/utils"
	"zapflow/worker"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry when a DSN is configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              config.AppConfig.SentryDSN,
			TracesSampleRate: 0.1,
		}); err != nil {
			log.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := config.MigrateDB(config.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	workerLogger := logrus.New()
	workerLogger.SetFormatter(&logrus.JSONFormatter{})

	gateway := utils.NewGatewayClient(config.AppConfig.GatewayBaseURL, config.AppConfig.GatewayAPIKey, workerLogger)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Initialize and start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatchWorker := worker.NewDispatchWorker(config.DB, gateway, workerLogger)
	go dispatchWorker.Start(ctx)

	statusWorker := worker.NewStatusWorker(config.DB, gateway, workerLogger)
	go statusWorker.Start(ctx)

	// Housekeeping jobs
	maintenance := worker.NewMaintenance(config.DB, workerLogger)
	scheduler := cron.New()
	scheduler.AddFunc("@every 1m", maintenance.PromoteScheduled)
	scheduler.AddFunc("0 0 * * *", maintenance.ResetDailyCounters)
	scheduler.Start()
	defer scheduler.Stop()

	// Setup routes
	routes.SetupRoutes(app, config.DB, gateway)

	// Start server
	log.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
