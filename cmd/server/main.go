package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmbox-service/config"
	"farmbox-service/internal/api"
	"farmbox-service/internal/broker"
	"farmbox-service/internal/redisclient"
	"farmbox-service/internal/service"
	"farmbox-service/internal/store"
	"farmbox-service/internal/stripeclient"
	"farmbox-service/internal/util"
	"farmbox-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting farmbox service")

	tp, err := util.InitTracer("farmbox-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	stripeClient := stripeclient.New(cfg.Stripe.SecretKey)
	webhookVerifier := stripeclient.NewWebhookVerifier(cfg.Stripe.WebhookSecret)

	bagService := service.NewBagService(db, eventPublisher, redisClient, service.BagConfig{
		DeliveryFee:   cfg.Business.DeliveryFee,
		CutoffWeekday: time.Weekday(cfg.Business.CutoffWeekday),
		CutoffHour:    cfg.Business.CutoffHour,
	})
	checkoutService := service.NewCheckoutService(db, bagService, stripeClient, service.CheckoutConfig{
		PriceIDSmall:  cfg.Stripe.PriceIDSmall,
		PriceIDMedium: cfg.Stripe.PriceIDMedium,
		PriceIDLarge:  cfg.Stripe.PriceIDLarge,
		FrontendURL:   cfg.Stripe.FrontendURL,
	})
	paymentSyncService := service.NewPaymentSyncService(db, db, stripeClient, webhookVerifier, redisClient, eventPublisher)
	subscriptionService := service.NewSubscriptionService(db, stripeClient)
	orderService := service.NewOrderService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	outboxWorker := worker.NewOutboxWorker(db, paymentSyncService,
		time.Duration(cfg.Business.OutboxPollSec)*time.Second)
	go func() {
		if err := outboxWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Outbox worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(bagService, checkoutService, paymentSyncService, subscriptionService, orderService, cfg.Auth.JWTSecret)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()

	log.Println("Server exited")
}
