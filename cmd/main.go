package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"payment-terminal/internal/config"
	"payment-terminal/internal/credentials"
	"payment-terminal/internal/handlers"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/ratelimit"
	"payment-terminal/internal/services"
	"payment-terminal/internal/sessions"
	"payment-terminal/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Pick the persistence gateway: Postgres when a DSN is configured,
	// in-memory otherwise.
	var gateway interfaces.PersistenceGateway
	if cfg.Postgres.DSN != "" {
		pg, err := storage.NewPostgresStorage(context.Background(), cfg.Postgres.DSN, cfg.Server.Verbose)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		gateway = pg
		log.Printf("Using Postgres persistence")
	} else {
		gateway = storage.NewMemoryStorage(cfg.Server.Verbose)
		log.Printf("Using in-memory persistence - records are lost on restart")
	}

	// Rate limiter with background sweep of expired windows
	limiter := ratelimit.NewLimiter(cfg.Server.Verbose)
	limiter.StartSweepRoutine(cfg.RateLimitSweep)

	// Ephemeral credential materialization
	credManager := credentials.NewManager(cfg.Credentials.BaseDir, cfg.Server.Verbose)

	// Initialize remote clients based on configuration (factory pattern)
	invoker, subscriber := services.CreateClients(cfg)
	endpoints := services.EndpointsFromConfig(cfg)

	if cfg.Server.Verbose {
		if cfg.StandaloneMode {
			log.Printf("Initialized MOCK clients for standalone mode")
		} else {
			log.Printf("Initialized REAL clients for online mode")
		}
	}

	registry := sessions.NewRegistry()
	txService := services.NewTransactionService(invoker, credManager, gateway, endpoints, cfg.Server.Verbose)
	notifService := services.NewNotificationService(subscriber, credManager, gateway, registry, endpoints, cfg.Server.Verbose)
	disputeService := services.NewDisputeService(gateway, cfg.Server.Verbose)

	// Initialize handlers
	handler := handlers.NewTerminalHandler(txService, notifService, disputeService, gateway, limiter, cfg)

	// Set up Gin router with logging based on verbose config
	var router *gin.Engine
	if cfg.Server.Verbose {
		gin.SetMode(gin.DebugMode)
		router = gin.Default()
		log.Printf("Verbose mode enabled - HTTP requests will be logged")
	} else {
		gin.SetMode(gin.ReleaseMode)
		router = gin.New()
		router.Use(gin.Recovery())
	}

	// Define routes
	api := router.Group("/api")
	{
		api.POST("/convert-container-to-pem",
			handler.RateLimit("convert-container-to-pem"), handler.ConvertContainer)
		api.POST("/generate-transaction",
			handler.RateLimit("generate-transaction"), handler.GenerateTransaction)
		api.POST("/get-transaction-history/:id",
			handler.RateLimit("get-transaction-history"), handler.GetTransactionHistory)
		api.POST("/subscribe-notifications",
			handler.RateLimit("subscribe-notifications"), handler.SubscribeNotifications)
		api.POST("/unsubscribe-notifications",
			handler.RateLimit("unsubscribe-notifications"), handler.UnsubscribeNotifications)
		api.POST("/mark-dispute",
			handler.RateLimit("mark-dispute"), handler.MarkDispute)
		api.POST("/set-integrity-validation",
			handler.RateLimit("set-integrity-validation"), handler.SetIntegrityValidation)
		api.POST("/get-transactions-by-date",
			handler.RateLimit("get-transactions-by-date"), handler.GetTransactionsByDate)
		api.POST("/get-notifications-by-date",
			handler.RateLimit("get-notifications-by-date"), handler.GetNotificationsByDate)
		api.GET("/view-confirmation/:id",
			handler.RateLimit("view-confirmation"), handler.ViewConfirmation)
	}

	// Health check
	router.GET("/health", handler.HealthCheck)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting payment terminal on port %d", cfg.Server.Port)

	if cfg.StandaloneMode {
		log.Printf("Running in STANDALONE mode - no external services required")
	} else {
		log.Printf("Running in ONLINE mode - connecting to external services")
		log.Printf("  Settlement API (production): %s", cfg.Settlement.ProductionURL)
		log.Printf("  Settlement API (test): %s", cfg.Settlement.TestURL)
		log.Printf("  Notification broker (production): %s", cfg.Broker.ProductionURL)
		log.Printf("  Notification broker (test): %s", cfg.Broker.TestURL)
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
