package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proforma/api/swagger"
	"proforma/internal/config"
	"proforma/internal/database"
	"proforma/internal/handler"
	"proforma/internal/lock"
	"proforma/internal/logger"
	"proforma/internal/middleware"
	"proforma/internal/repository"
	"proforma/internal/service"
	"proforma/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Proforma Invoice Payment Ledger API
// @version         1.0
// @description     Proforma invoices, payments against invoices and other targets, and customer balances.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	log.Info("Connected to PostgreSQL successfully")

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Redis connection failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, log.Named("lock"))
		log.Info("Using Redis target locks", zap.String("addr", cfg.Redis.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	invoiceService := service.NewInvoiceService(invoiceRepo, paymentRepo, auditRepo, txManager, locker, wsHub, log, cfg.DefaultCurrency)
	paymentService := service.NewPaymentService(paymentRepo, invoiceRepo, auditRepo, txManager, locker, wsHub, log, cfg.DefaultCurrency)
	customerService := service.NewCustomerService(invoiceRepo)
	auditService := service.NewAuditService(auditRepo)

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("Validator registration failed", zap.Error(err))
	}
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	customerHandler := handler.NewCustomerHandler(customerService)
	auditHandler := handler.NewAuditHandler(auditService)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.Recovery(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	swagger.SwaggerInfo.Host = "localhost:" + cfg.Port
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	auth := middleware.NewAuthenticator(cfg.JWTSecret)
	router.GET("/ws", wsHub.Handler(auth))

	// API Routing
	api := router.Group("")
	invoiceHandler.RegisterRoutes(api, auth)
	paymentHandler.RegisterRoutes(api, auth)
	customerHandler.RegisterRoutes(api, auth)
	auditHandler.RegisterRoutes(api, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
