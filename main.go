package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Haki-Chain/Haki-Chain/handlers"
	"github.com/Haki-Chain/Haki-Chain/middleware"
	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/Haki-Chain/Haki-Chain/services"
	"github.com/Haki-Chain/Haki-Chain/utils"
	"github.com/Haki-Chain/Haki-Chain/workers"

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
		BodyLimit: 50 * 1024 * 1024, // 50MB — case documents and evidence files
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.LawyerProfile{},
		&models.NGOProfile{},
		&models.DonorProfile{},
		&models.Bounty{},
		&models.Milestone{},
		&models.Donation{},
		&models.Payment{},
		&models.Escrow{},
		&models.Token{},
		&models.TokenTransaction{},
		&models.TokenConversion{},
		&models.Withdrawal{},
		&models.WalletMirror{},
		&models.BountyDocument{},
		&models.Review{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// --- CONFIGURE Haki Ledger Service ---
	ledgerServiceURL := os.Getenv("LEDGER_SERVICE_URL")
	if ledgerServiceURL == "" {
		log.Fatal("LEDGER_SERVICE_URL environment variable not set")
	}
	hakiServiceToken := os.Getenv("HAKI_SERVICE_TOKEN")
	if hakiServiceToken == "" {
		log.Fatal("HAKI_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	ledger := services.NewHakiLedgerClient(ledgerServiceURL, hakiServiceToken)

	bountyService := services.NewBountyService(db, ledger)
	tokenService := services.NewTokenService(db, ledger)
	matchingService := services.NewMatchingService(os.Getenv("AI_SERVICE_URL"), hakiServiceToken)

	// --- CONFIGURE Sync Service Details for Account Mirrors ---
	accountsServiceURL := os.Getenv("ACCOUNTS_SERVICE_URL")
	if accountsServiceURL == "" {
		log.Fatal("ACCOUNTS_SERVICE_URL environment variable not set")
	}
	// --- END CONFIG ---

	syncWorker := workers.NewUserSyncWorker(db, accountsServiceURL, "/api/v1/public/profiles", hakiServiceToken)

	ledgerSyncClient := workers.NewLedgerSyncClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollLedger(ctx, ledgerSyncClient, 10*time.Second)

	go func() {
		log.Println("Starting Account Sync Worker...")
		syncWorker.Start(ctx)
	}()

	tokenService.StartReconciliationScheduler()

	// ✅ Setup routes — enforced Gateway auth on everything
	handlers.SetupBountyRoutes(app, bountyService)
	handlers.SetupPaymentRoutes(app, tokenService)
	handlers.SetupMatchingRoutes(app, db, matchingService)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Account Sync Worker running")
	log.Println("✅ Ledger polling running (every 10s)")
	log.Println("✅ Token reconciliation scheduler running (every 10m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
