package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"verifast/handlers"
	"verifast/middleware"
	"verifast/models"
	"verifast/services"
	"verifast/utils"
	"verifast/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 2 * 1024 * 1024, // 2MB — JSON payloads only
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
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
		&models.Account{},
		&models.ArticlePrivilege{},
		&models.LedgerEntry{},
		&models.Article{},
		&models.QuizAttempt{},
		&models.Comment{},
		&models.CommentInteraction{},
		&models.FeaturePurchase{},
		&models.FeaturePriceOverride{},
		&models.ContentSource{},
		&models.ContentFingerprint{},
		&models.ContentAcquisitionJob{},
		&models.AcquisitionMetric{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	cache, err := services.NewCacheService(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatal("failed to connect to Redis:", err)
	}
	defer cache.Close()

	archive, err := utils.NewR2ArchiveFromEnv()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if archive == nil {
		log.Println("⚠️  R2 not configured — snapshot archiving disabled")
	}

	// XP economy services
	accountService := services.NewAccountService(db)
	txManager := services.NewTransactionManager(db, cache)
	featureService, err := services.NewFeatureService(db, txManager)
	if err != nil {
		log.Fatal("failed to load feature catalog:", err)
	}
	quizProcessor := services.NewQuizResultProcessor(db, txManager)
	socialManager := services.NewSocialInteractionManager(db, txManager)
	auditor := services.NewLedgerAuditor(db)

	// Content acquisition pipeline
	fetcher := workers.NewFetcher()
	var generator workers.QuizGenerator
	quizServiceURL := os.Getenv("QUIZ_SERVICE_URL")
	if quizServiceURL == "" {
		log.Fatal("QUIZ_SERVICE_URL environment variable not set")
	}
	generator = workers.NewHTTPQuizGenerator(quizServiceURL, os.Getenv("QUIZ_SERVICE_TOKEN"))
	quizGenWorker := workers.NewQuizGenWorker(db, cache, generator)

	var archiver workers.SnapshotArchiver
	if archive != nil {
		archiver = archive
	}
	orchestrator := workers.NewOrchestrator(db, fetcher, quizGenWorker, archiver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("Starting quiz generation worker...")
		quizGenWorker.Run(ctx, 15*time.Second)
	}()

	scheduler := workers.NewScheduler(orchestrator, socialManager)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer scheduler.Stop()

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupEconomyRoutes(app, accountService, txManager, featureService, auditor)
	handlers.SetupQuizRoutes(app, accountService, quizProcessor)
	handlers.SetupSocialRoutes(app, accountService, socialManager)
	handlers.SetupContentRoutes(app, orchestrator)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Quiz generation worker running")
	log.Println("✅ Acquisition scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
