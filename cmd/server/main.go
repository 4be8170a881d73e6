package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"delivery_ops/internal/config"
	"delivery_ops/internal/database"
	"delivery_ops/internal/events"
	"delivery_ops/internal/handlers"
	"delivery_ops/internal/migrations"
	"delivery_ops/internal/printing"
	"delivery_ops/internal/redis"
	"delivery_ops/internal/repository"
	"delivery_ops/internal/services"
	"delivery_ops/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := migrations.RunMigrations(db, migrations.Options{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		SeedDemoData:  cfg.SeedDemoData,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Print job status store
	var store printing.JobStore
	switch cfg.JobStatusBackend {
	case "redis":
		redisClient, err := redis.Initialize(cfg.RedisURL, cfg.JobStatusTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		store = redisClient
	default:
		store = printing.NewMemoryJobStore(cfg.JobStatusMaxEntries, cfg.JobStatusTTL)
	}
	log.Info().Str("action", "job_store_ready").Str("backend", cfg.JobStatusBackend).Dur("ttl", cfg.JobStatusTTL).Msg("Print job store ready")

	// Lifecycle events
	publisher := events.NewNoopPublisher()
	if cfg.RabbitMQURL != "" {
		publisher, err = events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		log.Info().Str("action", "publisher_ready").Str("exchange", cfg.RabbitMQExchange).Msg("Publishing order events")
	}
	defer publisher.Close()

	// Agent notifications
	var notifier services.Notifier
	if cfg.WhatsAppAPIURL != "" {
		notifier = services.NewWhatsAppNotifier(
			whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath),
		)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Initialize services
	broker := printing.NewBroker(printing.NewRegistry(), store, cfg.BroadcastConcurrency)
	userService := services.NewUserService(userRepo)
	reportService := services.NewReportService(reportRepo)
	orderService := services.NewOrderService(orderRepo, cartRepo, agentRepo, broker, publisher)
	lifecycleService := services.NewLifecycleService(orderRepo, agentRepo, reportService, notifier, publisher)

	// Setup routes
	router := handlers.Router{
		Orders: handlers.NewOrderHandler(orderService, lifecycleService, reportService),
		Cart:   handlers.NewCartHandler(orderService),
		Print:  handlers.NewPrintHandler(broker, orderService),
		Socket: handlers.NewPrinterSocket(broker, cfg.PrinterSendBuffer),
	}
	if cfg.AdminAuthEnabled {
		router.AdminAuth = handlers.AdminAuth(userService)
	}
	if strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           corsHandler.Handler(router.Setup()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("action", "server_started").Str("port", cfg.ServerPort).Msg("Server starting")

	select {
	case <-ctx.Done():
		log.Info().Str("action", "server_stopping").Msg("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Graceful shutdown did not complete")
	}
	lifecycleService.Wait()
	log.Info().Str("action", "server_stopped").Msg("Server stopped")
}

func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}
