package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"asset-curation-system/config"
	"asset-curation-system/handlers"
	"asset-curation-system/middleware"
	"asset-curation-system/models"
	"asset-curation-system/services"
	"asset-curation-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB — JSON only, no uploads here
	})

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOrigins := make([]string, 0)
	for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
		allowedOrigins = append(allowedOrigins, strings.TrimSpace(origin))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Wallet-Address, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if err := models.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	oracle := services.NewMirrorOracle(db)
	karmaService := services.NewKarmaService(db, cfg)
	eligibilityService := services.NewEligibilityService(db, oracle)
	feedService := services.NewFeedService(db)
	moderationService := services.NewModerationService(db, karmaService)
	submissionService := services.NewSubmissionService(db, cfg, eligibilityService, karmaService, feedService)
	thresholdService := services.NewThresholdService(db, cfg, karmaService, feedService, moderationService)
	adminService := services.NewAdminService(db, cfg, karmaService, feedService, thresholdService)
	projectService := services.NewProjectService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Keep the balance oracle's mirror fresh
	holderSyncClient := workers.NewHolderSyncClient(db, cfg.HoldingsServiceURL, cfg.HoldingsToken)
	go workers.PollHolders(ctx, holderSyncClient, cfg.HolderSyncInterval)

	sched, err := thresholdService.StartEvaluationScheduler(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to start evaluation scheduler")
	}

	handlers.SetupAssetRoutes(app, projectService, submissionService, karmaService, feedService)
	handlers.SetupAdminRoutes(app, adminService, moderationService, projectService)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.WithError(err).Error("server error")
		}
	}()

	log.WithFields(log.Fields{
		"addr":          cfg.ListenAddr,
		"eval_interval": cfg.EvalInterval,
		"holder_sync":   cfg.HolderSyncInterval,
	}).Info("asset curation service running")

	<-ctx.Done()
	log.Info("shutting down")
	_ = sched.Shutdown()
	_ = app.Shutdown()
}
