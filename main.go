package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"movetogether-backend/handlers"
	"movetogether-backend/middleware"
	"movetogether-backend/models"
	"movetogether-backend/services"
	"movetogether-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // submissions and chat payloads are small
	})

	// CORS for the mobile client
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.HealthConnection{},
		&models.ActivityRecord{},
		&models.Competition{},
		&models.CompetitionParticipant{},
		&models.ChatMessageFlag{},
		&models.NotificationRecord{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	pushClient := services.NewPushClient(
		envOrDefault("PUSH_PROVIDER_URL", "https://exp.host"),
		os.Getenv("PUSH_PROVIDER_TOKEN"),
	)
	notificationService := services.NewNotificationService(db, pushClient)
	standingsService := services.NewStandingsService(db, notificationService)
	scoreService := services.NewScoreService(db, standingsService, notificationService)
	competitionService := services.NewCompetitionService(db)
	moderationService := services.NewModerationService(db, services.NewToxicityClientFromEnv())
	healthSyncService := services.NewHealthSyncService(db, services.NewProviderRegistryFromEnv(), scoreService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background work: profile mirror, token refresh, status transitions.
	if profileServiceURL := os.Getenv("PROFILE_SERVICE_URL"); profileServiceURL != "" {
		serviceToken := os.Getenv("SERVICE_TOKEN")
		if serviceToken == "" {
			log.Fatal("SERVICE_TOKEN environment variable not set")
		}
		profileSyncWorker := workers.NewProfileSyncWorker(db, profileServiceURL, serviceToken)
		profileSyncWorker.Start(ctx)
	} else {
		log.Println("⚠️  PROFILE_SERVICE_URL not set, profile sync worker disabled")
	}
	go workers.PollExpiringTokens(ctx, healthSyncService, 10*time.Minute)
	competitionService.StartStatusScheduler()

	// Routes
	handlers.SetupScoreRoutes(app, scoreService)
	handlers.SetupModerationRoutes(app, moderationService, competitionService)
	handlers.SetupCompetitionRoutes(app, competitionService, standingsService)
	handlers.SetupHealthRoutes(app, healthSyncService)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", middleware.ServiceTokenMiddleware(), adaptor.HTTPHandler(promhttp.Handler()))

	port := envOrDefault("PORT", "5300")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Competition status scheduler running")
	log.Println("✅ Health token refresh polling running (every 10m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
