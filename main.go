package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Djalves424/ProjetoDSCommerce/cache"
	"github.com/Djalves424/ProjetoDSCommerce/database"
	"github.com/Djalves424/ProjetoDSCommerce/handlers"
	"github.com/Djalves424/ProjetoDSCommerce/kafka"
	"github.com/Djalves424/ProjetoDSCommerce/middleware"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
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

	// Initialize Redis
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing("commerce-api")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Start the payment worker in background
	paymentConsumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer paymentConsumer.Close()
	go func() {
		if err := kafka.StartPaymentWorker(paymentConsumer, db, producer, logger); err != nil {
			logger.Error("Payment worker error", zap.Error(err))
		}
	}()

	// Start the notification consumer in background
	notificationConsumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer notificationConsumer.Close()
	go func() {
		if err := kafka.StartNotificationConsumer(notificationConsumer, logger); err != nil {
			logger.Error("Notification consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("commerce-api"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(db, logger)
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)

	// Public catalog endpoints
	productHandler := handlers.NewProductHandler(db, redisClient, logger)
	categoryHandler := handlers.NewCategoryHandler(db, logger)
	router.GET("/products", productHandler.GetProducts)
	router.GET("/products/:id", productHandler.GetProduct)
	router.GET("/categories", categoryHandler.GetCategories)

	// Authenticated endpoints
	orderHandler := handlers.NewOrderHandler(db, producer, logger)
	authenticated := router.Group("/")
	authenticated.Use(middleware.AuthMiddleware())
	{
		authenticated.GET("/users/me", authHandler.GetMe)
		authenticated.GET("/orders/:id", orderHandler.GetOrder)

		client := authenticated.Group("/")
		client.Use(middleware.RequireRole(models.RoleClient))
		{
			client.POST("/orders", orderHandler.CreateOrder)
		}

		admin := authenticated.Group("/")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/products", productHandler.CreateProduct)
			admin.PUT("/products/:id", productHandler.UpdateProduct)
			admin.DELETE("/products/:id", productHandler.DeleteProduct)
			admin.DELETE("/orders/:id", orderHandler.DeleteOrder)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Commerce API started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
