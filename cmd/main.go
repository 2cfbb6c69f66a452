package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"agridist/internal/caching"
	"agridist/internal/common"
	"agridist/internal/events"
	"agridist/internal/handlers"
	"agridist/internal/jobs/background"
	"agridist/internal/middleware"
	"agridist/internal/models"
	"agridist/internal/repositories"
	"agridist/internal/services"
	"agridist/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret: %s", jwtSecret)
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin" // Default for development
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin" // Default for development
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	// Payment remittance details shown to requesters; external configuration,
	// never mutated by the core.
	paymentSettings := models.PaymentSettings{
		BeneficiaryName: os.Getenv("PAYMENT_BENEFICIARY_NAME"),
		BankAccount:     os.Getenv("PAYMENT_BANK_ACCOUNT"),
		IFSCCode:        os.Getenv("PAYMENT_IFSC_CODE"),
		UPIAddress:      os.Getenv("PAYMENT_UPI_ADDRESS"),
	}

	// Object storage
	storageSvc, err := services.NewStorageService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize storage service: %v", err)
	}
	for _, bucket := range []string{services.BucketReceipts, services.BucketDispatchNotes} {
		if err := storageSvc.EnsureBucketExists(context.Background(), bucket); err != nil {
			log.Printf("WARN: could not ensure bucket %s: %v", bucket, err)
		}
	}

	// Redis: shared client for cache and event publishing
	redisClient := caching.NewRedisClient(redisAddr, redisPassword, redisDB)
	cacheSvc := caching.NewRedisCacheService(redisClient)
	publisher := events.NewRedisPublisher(redisClient)

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	productRepo := repositories.NewProductRepo(pool)
	stockRepo := repositories.NewStockRepo(pool)
	requestRepo := repositories.NewRequestRepo(pool)
	lotRepo := repositories.NewLotRepo(pool)
	allocationRepo := repositories.NewAllocationRepo(pool)

	// Per-key serialization for stock approval and ledger allocation
	locks := common.NewKeyMutex()

	// Services
	authSvc := services.NewAuthService(userRepo, jwtSecret, 15*time.Minute, 7*24*time.Hour)
	requestSvc := services.NewRequestService(requestRepo, productRepo, stockRepo, lotRepo, cacheSvc, publisher, locks)
	noteSvc := services.NewDispatchNoteService(productRepo, storageSvc)
	allocationSvc := services.NewAllocationService(lotRepo, allocationRepo, noteSvc, publisher, locks)
	ledgerSvc := services.NewLedgerService(lotRepo, allocationRepo)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authSvc, userRepo)
	requestHandlers := handlers.NewRequestHandlers(requestSvc, storageSvc)
	allocationHandlers := handlers.NewAllocationHandlers(allocationSvc)
	ledgerHandlers := handlers.NewLedgerHandlers(ledgerSvc)
	catalogHandlers := handlers.NewCatalogHandlers(productRepo, stockRepo, cacheSvc, paymentSettings)

	// Background jobs
	scheduler, err := background.NewJobScheduler(requestRepo, ledgerSvc, publisher)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("WARN: scheduler shutdown: %v", err)
		}
	}()

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", handlers.HealthCheck)
	e.GET("/health/ready", func(c echo.Context) error {
		return handlers.ReadinessCheck(c, pool)
	})

	// API routes
	v1 := e.Group("/v1")

	// Authentication routes (no JWT required for signup/login)
	auth := v1.Group("/auth")
	auth.POST("/signup", authHandlers.Signup)
	auth.POST("/login", authHandlers.Login)
	auth.POST("/refresh", authHandlers.Refresh)

	// Protected routes
	protected := v1.Group("")
	protected.Use(echojwt.WithConfig(middleware.JWTConfig(jwtSecret)))
	protected.Use(middleware.ClaimsToContext())

	protected.GET("/me", authHandlers.Me)

	// Catalog and central stock
	protected.GET("/products", catalogHandlers.ListProducts)
	protected.GET("/products/:id", catalogHandlers.GetProduct)
	protected.GET("/stock/:id", catalogHandlers.GetStock)
	protected.PUT("/stock/:id", catalogHandlers.SetStock, middleware.RequireRole(middleware.RoleIssuerAdmin))
	protected.GET("/settings/payment", catalogHandlers.PaymentSettings)

	// Fulfillment requests
	protected.POST("/requests", requestHandlers.Submit,
		middleware.RequireRole(middleware.RoleDistributor, middleware.RoleSubDistributor))
	protected.GET("/requests", requestHandlers.ListMine)
	protected.GET("/requests/pending", requestHandlers.ApprovalQueue, middleware.RequireRole(middleware.RoleIssuerAdmin))
	protected.GET("/requests/:id", requestHandlers.Get)
	protected.POST("/requests/:id/receipt", requestHandlers.AttachReceipt)
	protected.GET("/requests/:id/receipt", requestHandlers.ReceiptURL, middleware.RequireRole(middleware.RoleIssuerAdmin))
	protected.POST("/requests/:id/verify-payment", requestHandlers.VerifyPayment, middleware.RequireRole(middleware.RoleIssuerAdmin))
	protected.POST("/requests/:id/reject-payment", requestHandlers.RejectPayment, middleware.RequireRole(middleware.RoleIssuerAdmin))
	protected.POST("/requests/:id/approve", requestHandlers.Approve, middleware.RequireRole(middleware.RoleIssuerAdmin))
	protected.POST("/requests/:id/cancel", requestHandlers.Cancel, middleware.RequireRole(middleware.RoleIssuerAdmin))

	// Ledger and allocations
	protected.GET("/ledger/lots", ledgerHandlers.Lots)
	protected.GET("/ledger/summary", ledgerHandlers.Summary)
	protected.POST("/allocations", allocationHandlers.Allocate,
		middleware.RequireRole(middleware.RoleDistributor, middleware.RoleSubDistributor))
	protected.GET("/allocations", allocationHandlers.ListOutgoing)
	protected.GET("/allocations/incoming", allocationHandlers.ListIncoming)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Agridist server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
