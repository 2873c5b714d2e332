package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"payment-gateway/internal/auth"
	"payment-gateway/internal/config"
	"payment-gateway/internal/kafka"
	"payment-gateway/internal/logger"
	"payment-gateway/internal/payments"
	"payment-gateway/internal/payments/gateway"
	"payment-gateway/internal/payments/payment_api"
	rediswrap "payment-gateway/internal/payments/redis"
	"payment-gateway/internal/qr"
	"payment-gateway/internal/sse"
	"payment-gateway/internal/storage"
)

func verifyRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return redisClient
}

func buildPublisher(cfg *config.Config, log *logger.Logger) kafka.Publisher {
	if !cfg.Kafka.Enabled || cfg.Kafka.MockMode {
		log.Info("KAFKA", "Kafka disabled, using mock producer")
		return kafka.NewMockProducer(log)
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
	requiredTopics := []string{
		cfg.Kafka.Topics.PaymentEvents,
		cfg.Kafka.Topics.PaymentSuccess,
		cfg.Kafka.Topics.PaymentFailed,
		cfg.Kafka.Topics.PaymentRefunded,
	}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
}

func buildGateway(cfg *config.Config, log *logger.Logger) gateway.Gateway {
	if cfg.Stripe.MockMode {
		log.Info("GATEWAY", "Using mock payment gateway")
		return gateway.NewMockGateway(log)
	}
	log.Info("GATEWAY", "Using Stripe payment gateway")
	stripeGateway, err := gateway.NewStripeService(log)
	if err != nil {
		log.Fatal("GATEWAY", fmt.Sprintf("Failed to initialize Stripe gateway: %v", err))
	}
	return stripeGateway
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Payment Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying connections")
	redisClient := verifyRedis(ctx, cfg, log)
	defer redisClient.Close()

	store := storage.NewRemoteStore(cfg.DatabaseService, log)
	log.Info("STORAGE", fmt.Sprintf("Database service client configured for %s", cfg.DatabaseService.BaseURL))

	publisher := buildPublisher(cfg, log)
	payGateway := buildGateway(cfg, log)
	locks := rediswrap.NewRedis(redisClient)
	emitter := sse.NewPaymentEventEmitter()

	paymentService := payments.NewPaymentService(
		store,
		payGateway,
		publisher,
		locks,
		emitter,
		cfg.Processing.Sync,
		log,
	)
	if cfg.Processing.Sync {
		log.Info("APP", "Payment processing mode: synchronous")
	} else {
		log.Info("APP", "Payment processing mode: asynchronous")
	}

	qrGenerator := qr.NewGenerator(cfg.QR.Secret)

	handler := payment_api.NewHandler(paymentService, qrGenerator, log)
	sseHandler := payment_api.NewSSEHandler(emitter, log)
	healthHandler := payment_api.NewHealthHandler(store, locks)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Ready)
	log.Info("ROUTER", "Health endpoints registered at /health and /health/ready")

	if cfg.Auth.Enabled {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth.Issuer))
			log.Info("AUTH", "OIDC middleware applied to payment API routes")
			handler.RegisterRoutes(r)
			sseHandler.RegisterRoutes(r)
		})
	} else {
		log.Warn("AUTH", "OIDC middleware disabled, payment API routes are unauthenticated")
		handler.RegisterRoutes(r)
		sseHandler.RegisterRoutes(r)
	}
	log.Info("ROUTER", "Payment routes registered under /api/v1")

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Payment Service running on :%s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Payment Service shutdown complete")
	}
}
