package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/config"
	"github.com/pesio-ai/be-vm-acceptance/internal/handler"
	"github.com/pesio-ai/be-vm-acceptance/internal/notify"
	"github.com/pesio-ai/be-vm-acceptance/internal/payment"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
	"github.com/pesio-ai/be-vm-acceptance/internal/service"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	level, err := zerolog.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Logger()

	log.Info().
		Str("environment", cfg.Service.Environment).
		Msg("Starting Acceptance Documents Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := store.New(ctx, store.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.MaxConnLife,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Connect the notification bus. Without a URL the dispatcher still
	// writes notification rows, it just skips event publishing.
	var publisher notify.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		publisher = nc
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS_URL not set, notification events disabled")
	}

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	paymentLogRepo := repository.NewPaymentLogRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize dispatcher and services
	dispatcher := notify.NewDispatcher(notificationRepo, userRepo, publisher, log)

	documentService := service.NewDocumentService(docRepo, log)
	approvalService := service.NewApprovalService(docRepo, approvalRepo, attachmentRepo, dispatcher, log)
	attachmentService := service.NewAttachmentService(docRepo, attachmentRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, log)

	readinessChecker := payment.NewReadinessChecker(docRepo, paymentLogRepo, userRepo)
	gateway := payment.NewGateway(payment.GatewayConfig{
		SuccessRate: cfg.Payment.SuccessRate,
		MinDelay:    cfg.Payment.MinDelay,
		MaxDelay:    cfg.Payment.MaxDelay,
	})
	paymentService := payment.NewService(readinessChecker, gateway, paymentLogRepo, dispatcher, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(
		documentService,
		approvalService,
		attachmentService,
		notificationService,
		paymentService,
		log,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
