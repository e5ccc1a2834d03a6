package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/paystream/ledger/internal/config"
	"github.com/paystream/ledger/internal/database"
	"github.com/paystream/ledger/internal/handlers"
	"github.com/paystream/ledger/internal/messaging"
	mW "github.com/paystream/ledger/internal/middleware"
	"github.com/paystream/ledger/internal/services"
)

func main() {
	cfg := config.Load()

	store, err := database.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	commandService, err := services.NewBalanceCommandService(store, redisClient, cfg.MailboxCapacity)
	if err != nil {
		log.Fatalf("Failed to start command service: %v", err)
	}
	defer commandService.Stop()

	eventService := services.NewEventService(store)

	producer := messaging.NewKafkaProducer(cfg.BusBrokers, cfg.EventTopic, cfg.SendTimeout)
	defer producer.Close()

	publisher := services.NewPublisherService(
		eventService, store, producer,
		cfg.PoolingSize, cfg.PublishInterval, cfg.SendTimeout,
	)

	publisherCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()
	go publisher.Run(publisherCtx)

	balanceHandler := handlers.NewBalanceHandler(commandService, eventService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(mW.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/balance", balanceHandler.GetBalance)
		r.Post("/balance", balanceHandler.CreateBalance)
		r.Post("/balance/deposit", balanceHandler.Deposit)
		r.Post("/balance/withdraw", balanceHandler.Withdraw)
		r.Post("/balance/transfer", balanceHandler.Transfer)
		r.Get("/balance-events", balanceHandler.GetEvents)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopPublisher()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
