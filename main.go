package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Chandan5689/SajiloFix-sub002/database"
	"github.com/Chandan5689/SajiloFix-sub002/gateway"
	"github.com/Chandan5689/SajiloFix-sub002/handlers"
	"github.com/Chandan5689/SajiloFix-sub002/kafka"
	"github.com/Chandan5689/SajiloFix-sub002/middleware"
	"github.com/Chandan5689/SajiloFix-sub002/models"
	"github.com/Chandan5689/SajiloFix-sub002/session"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis for checkout sessions and gateway config cache
	redisClient, err := session.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()
	store := session.NewRedisStore(redisClient)

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("checkout-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Gateway drivers
	drivers := map[models.PaymentMethod]gateway.Driver{
		models.MethodCash: gateway.NewCash(),
	}
	if khalti, err := gateway.NewKhaltiConfigFromEnv().Gateway(); err != nil {
		logger.Warn("Khalti gateway disabled", zap.Error(err))
	} else {
		drivers[models.MethodKhalti] = khalti
	}
	if esewa, err := gateway.NewEsewaConfigFromEnv().Gateway(); err != nil {
		logger.Warn("eSewa gateway disabled", zap.Error(err))
	} else {
		drivers[models.MethodEsewa] = esewa
	}
	configs := gateway.NewConfigCache(redisClient, drivers)

	h := handlers.NewPaymentHandler(db, store, drivers, configs, producer, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", h.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Gateway config is public; it only ever carries browser-safe fields
	router.GET("/api/payments/config/:gateway", h.GetGatewayConfig)

	api := router.Group("/api/payments")
	api.Use(middleware.AuthMiddleware())
	{
		api.POST("/initiate", h.InitiatePayment)
		api.GET("/handoff/:gateway", h.ServeHandoff)
		api.GET("/callback/:gateway", h.VerifyCallback)
		api.GET("/history", h.PaymentHistory)
		api.GET("/transactions/:uid", h.GetTransaction)
		api.GET("/pending", h.PendingPayments)
		api.POST("/cash/confirm", h.ConfirmCashPayment)
	}

	// Start REST server
	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8086"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Checkout Service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
